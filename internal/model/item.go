package model

// Item is one POI record as returned by the search API. The harvester treats
// it as opaque apart from its identity key; nested objects and arrays are
// preserved as decoded JSON values until serialization.
type Item map[string]any

// ID returns the item's identity key, or "" when the record carries none.
func (i Item) ID() string {
	v, ok := i["id"]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
