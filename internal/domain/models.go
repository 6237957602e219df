package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Order struct {
	ID        string     `json:"id"`
	Items     []LineItem `json:"items"`
	OrderedBy string     `json:"-"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
}

type LineItem struct {
	Product  ProductRef `json:"product"`
	Quantity int        `json:"quantity"`
}

type Product struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Price     int64  `json:"price"`
	PriceJSON string `json:"priceJSON,omitempty"`
	Meta      Meta   `json:"meta"`
}

type Meta struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       MediaRef `json:"image"`
}

type Media struct {
	ID       string `json:"id"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
	Alt      string `json:"alt,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// ProductRef is a relationship field: the backend returns either the populated
// product document or only its identifier, depending on query depth and access.
type ProductRef struct {
	ID      string
	Product *Product
}

func (r ProductRef) Resolved() bool { return r.Product != nil }

func (r *ProductRef) UnmarshalJSON(data []byte) error {
	id, object, err := decodeRelation(data)
	if err != nil {
		return fmt.Errorf("decode product: %w", err)
	}
	if !object {
		*r = ProductRef{ID: id}
		return nil
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode product: %w", err)
	}
	*r = ProductRef{ID: p.ID, Product: &p}
	return nil
}

func (r ProductRef) MarshalJSON() ([]byte, error) {
	if r.Product != nil {
		return json.Marshal(r.Product)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

type MediaRef struct {
	ID    string
	Media *Media
}

func (r MediaRef) Resolved() bool { return r.Media != nil }

func (r *MediaRef) UnmarshalJSON(data []byte) error {
	id, object, err := decodeRelation(data)
	if err != nil {
		return fmt.Errorf("decode media: %w", err)
	}
	if !object {
		*r = MediaRef{ID: id}
		return nil
	}
	var m Media
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode media: %w", err)
	}
	*r = MediaRef{ID: m.ID, Media: &m}
	return nil
}

func (r MediaRef) MarshalJSON() ([]byte, error) {
	if r.Media != nil {
		return json.Marshal(r.Media)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// decodeRelation reports the identifier of a non-populated relation, or
// object=true when the payload is a populated document.
func decodeRelation(data []byte) (id string, object bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false, nil
	}
	switch trimmed[0] {
	case '{':
		return "", true, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false, err
		}
		return strings.TrimSpace(s), false, nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", false, err
		}
		return n.String(), false, nil
	}
}

// UnmarshalJSON accepts numeric or string identifiers and an orderedBy
// relation that may be populated.
func (o *Order) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		Items     []LineItem      `json:"items"`
		OrderedBy json.RawMessage `json:"orderedBy"`
		CreatedAt *time.Time      `json:"createdAt"`
		UpdatedAt *time.Time      `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, _, err := decodeRelation(raw.ID)
	if err != nil {
		return fmt.Errorf("decode order id: %w", err)
	}
	out := Order{ID: id, Items: raw.Items}
	if len(raw.OrderedBy) > 0 {
		userID, object, err := decodeRelation(raw.OrderedBy)
		if err != nil {
			return fmt.Errorf("decode orderedBy: %w", err)
		}
		if object {
			var u struct {
				ID json.RawMessage `json:"id"`
			}
			if err := json.Unmarshal(raw.OrderedBy, &u); err != nil {
				return fmt.Errorf("decode orderedBy: %w", err)
			}
			userID, _, _ = decodeRelation(u.ID)
		}
		out.OrderedBy = userID
	}
	if raw.CreatedAt != nil {
		out.CreatedAt = raw.CreatedAt.UTC()
	}
	if raw.UpdatedAt != nil {
		out.UpdatedAt = raw.UpdatedAt.UTC()
	}
	*o = out
	return nil
}

// UnmarshalJSON normalises numeric identifiers to strings.
func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	var raw struct {
		alias
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, _, err := decodeRelation(raw.ID)
	if err != nil {
		return fmt.Errorf("decode product id: %w", err)
	}
	*p = Product(raw.alias)
	p.ID = id
	return nil
}

func (m *Media) UnmarshalJSON(data []byte) error {
	type alias Media
	var raw struct {
		alias
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, _, err := decodeRelation(raw.ID)
	if err != nil {
		return fmt.Errorf("decode media id: %w", err)
	}
	*m = Media(raw.alias)
	m.ID = id
	return nil
}

func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	var raw struct {
		alias
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, _, err := decodeRelation(raw.ID)
	if err != nil {
		return fmt.Errorf("decode user id: %w", err)
	}
	*u = User(raw.alias)
	u.ID = id
	return nil
}
