package service

import (
	"fmt"
	"sort"
	"strings"
)

type purchaseKind int

const (
	purchaseUnset purchaseKind = iota
	purchaseExplicit
	purchaseWholeCart
)

// Purchase selects the classes a settlement pays for: either an explicit
// list or whatever is in the payer's cart when the settlement runs.  The
// zero value is invalid.
type Purchase struct {
	kind     purchaseKind
	classIDs []string
}

// Explicit buys exactly the given classes.  An explicit purchase with no
// IDs is rejected by the engine.
func Explicit(classIDs ...string) Purchase {
	ids := make([]string, len(classIDs))
	copy(ids, classIDs)
	return Purchase{kind: purchaseExplicit, classIDs: ids}
}

// WholeCart buys every class in the payer's cart.
func WholeCart() Purchase { return Purchase{kind: purchaseWholeCart} }

// IsWholeCart reports whether p reads the class set from the cart.
func (p Purchase) IsWholeCart() bool { return p.kind == purchaseWholeCart }

func (p Purchase) String() string {
	switch p.kind {
	case purchaseExplicit:
		return fmt.Sprintf("explicit%v", p.classIDs)
	case purchaseWholeCart:
		return "whole-cart"
	default:
		return "unset"
	}
}

// validate checks the variant and returns the normalized explicit IDs.
// For WholeCart it returns nil.
func (p Purchase) validate() ([]string, error) {
	switch p.kind {
	case purchaseWholeCart:
		return nil, nil
	case purchaseExplicit:
		if len(p.classIDs) == 0 {
			return nil, fmt.Errorf("%w: explicit purchase lists no classes", ErrInvalidRequest)
		}
		for _, id := range p.classIDs {
			if strings.TrimSpace(id) == "" {
				return nil, fmt.Errorf("%w: empty class id", ErrInvalidRequest)
			}
		}
		return normalizeClassIDs(p.classIDs), nil
	default:
		return nil, fmt.Errorf("%w: purchase not specified", ErrInvalidRequest)
	}
}

// normalizeClassIDs trims, deduplicates and sorts ids.  Sorting fixes the
// order in which class rows are locked.
func normalizeClassIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
