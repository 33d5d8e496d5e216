package service

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfStock       = errors.New("requested quantity out of stock")
	ErrProductNotInCart = errors.New("product not in cart")
)

type Op string

const (
	OpAdd    Op = "add product"
	OpRemove Op = "remove product"
	OpUpdate Op = "update product amount"
)

// OperationError reports an unexpected failure (remote lookup, encoding or
// persistence). The cart is unchanged when one is returned.
type OperationError struct {
	Op        Op
	ProductID int64
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Op, e.ProductID, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
