package query

const (
	MediaFields   = "MEDIA_FIELDS"
	Meta          = "META"
	ProductFields = "PRODUCT_FIELDS"
	Cart          = "CART"
	LinkFields    = "LINK_FIELDS"
	Header        = "HEADER"
	Footer        = "FOOTER"
	ProductQuery  = "PRODUCT_QUERY"
	MeCartQuery   = "ME_CART_QUERY"
	GlobalsQuery  = "GLOBALS_QUERY"
	ProductsQuery = "PRODUCTS_QUERY"
)

// catalog is the storefront's fragment set. META is shared by every
// product-bearing selection so the metadata shape is versioned in one place.
var catalog = map[string]string{
	MediaFields: `id
      url
      mimeType
      filename
      width
      height
      alt`,

	Meta: `meta {
    title
    description
    image {
      ${MEDIA_FIELDS}
    }
  }`,

	ProductFields: `id
      title
      slug
      price
      priceJSON
      ${META}`,

	Cart: `cart {
  items {
    product {
      id
      slug
      priceJSON
      ${META}
      price
      title
    }
    quantity
  }
}`,

	LinkFields: `link {
    type
    label
    url
    newTab
  }`,

	Header: `Header {
  navItems {
    ${LINK_FIELDS}
  }
}`,

	Footer: `Footer {
  navItems {
    ${LINK_FIELDS}
  }
}`,

	ProductQuery: `query Product($slug: String) {
  Products(where: { slug: { equals: $slug } }, limit: 1) {
    docs {
      ${PRODUCT_FIELDS}
    }
  }
}`,

	ProductsQuery: `query Products($page: Int) {
  Products(page: $page, limit: 300) {
    docs {
      id
      slug
    }
  }
}`,

	MeCartQuery: `query MeCart {
  meUser {
    user {
      id
      email
      name
      ${CART}
    }
  }
}`,

	GlobalsQuery: `query Globals {
  ${HEADER}
  ${FOOTER}
}`,
}

// DefaultRegistry returns a sealed registry holding the storefront catalog.
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for name, template := range catalog {
		if err := r.Register(name, template); err != nil {
			return nil, err
		}
	}
	if err := r.Seal(); err != nil {
		return nil, err
	}
	return r, nil
}
