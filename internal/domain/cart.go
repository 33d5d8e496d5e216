package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	fieldID     = "id"
	fieldAmount = "amount"
)

var ErrMalformedRecord = errors.New("malformed record")

// Product is a catalog item held in the cart. Attributes carries the display
// fields (title, price, image, ...) exactly as the catalog returned them.
type Product struct {
	ID         int64
	Amount     int
	Attributes map[string]json.RawMessage
}

func (p Product) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Attributes)+2)
	for k, v := range p.Attributes {
		out[k] = v
	}

	id, err := json.Marshal(p.ID)
	if err != nil {
		return nil, err
	}
	amount, err := json.Marshal(p.Amount)
	if err != nil {
		return nil, err
	}
	out[fieldID] = id
	out[fieldAmount] = amount

	return json.Marshal(out)
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	rawID, ok := raw[fieldID]
	if !ok {
		return fmt.Errorf("%w: product without id", ErrMalformedRecord)
	}
	var id int64
	if err := json.Unmarshal(rawID, &id); err != nil {
		return fmt.Errorf("%w: product id: %v", ErrMalformedRecord, err)
	}

	var amount int
	if rawAmount, ok := raw[fieldAmount]; ok {
		if err := json.Unmarshal(rawAmount, &amount); err != nil {
			return fmt.Errorf("%w: product amount: %v", ErrMalformedRecord, err)
		}
	}

	delete(raw, fieldID)
	delete(raw, fieldAmount)

	p.ID = id
	p.Amount = amount
	p.Attributes = raw
	return nil
}

// Clone copies the attribute map so the copy can be mutated independently.
func (p Product) Clone() Product {
	attrs := make(map[string]json.RawMessage, len(p.Attributes))
	for k, v := range p.Attributes {
		attrs[k] = v
	}
	p.Attributes = attrs
	return p
}

// Cart is an ordered list of products, at most one entry per product id.
type Cart []Product

func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for i, p := range c {
		out[i] = p.Clone()
	}
	return out
}

// Find returns the index of the entry for productID or -1.
func (c Cart) Find(productID int64) int {
	for i := range c {
		if c[i].ID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) Contains(productID int64) bool {
	return c.Find(productID) >= 0
}

// StockRecord is the stock oracle's answer for one product.
type StockRecord struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

func (s *StockRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     int64 `json:"id"`
		Amount *int  `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Amount == nil {
		return fmt.Errorf("%w: stock record without amount", ErrMalformedRecord)
	}
	s.ID = raw.ID
	s.Amount = *raw.Amount
	return nil
}

type AmountUpdate struct {
	ProductID int64
	Amount    int
}
