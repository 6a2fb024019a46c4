package domain

import "maps"

// A Selection is the user's partial assignment of attribute values.
type Selection map[AttributeKey]string

func (s Selection) Get(k AttributeKey) (string, bool) {
	v, ok := s[k]
	return v, ok
}

// With returns a copy of s with k set to v.
func (s Selection) With(k AttributeKey, v string) Selection {
	out := make(Selection, len(s)+1)
	maps.Copy(out, s)
	out[k] = v
	return out
}

// Without returns a copy of s with k cleared.
func (s Selection) Without(k AttributeKey) Selection {
	out := maps.Clone(s)
	if out == nil {
		return Selection{}
	}
	delete(out, k)
	return out
}
