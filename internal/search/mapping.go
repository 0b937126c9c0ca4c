package search

// indexMapping is applied when the listings index is created.
const indexMapping = `{
  "mappings": {
    "properties": {
      "id":           {"type": "keyword"},
      "tenant_id":    {"type": "keyword"},
      "slug":         {"type": "keyword"},
      "title":        {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "description":  {"type": "text"},
      "status":       {"type": "keyword"},
      "category_id":  {"type": "keyword"},
      "listing_type": {"type": "keyword"},
      "tags":         {"type": "keyword"},
      "price":        {"type": "double"},
      "currency":     {"type": "keyword"},
      "location":     {"type": "geo_point"},
      "address_line": {"type": "text"},
      "city":         {"type": "keyword"},
      "region":       {"type": "keyword"},
      "country":      {"type": "keyword"},
      "postal_code":  {"type": "keyword"},
      "featured":     {"type": "boolean"},
      "view_count":   {"type": "long"},
      "published_at": {"type": "long"},
      "created_at":   {"type": "long"},
      "updated_at":   {"type": "long"}
    }
  }
}`
