package cart

import (
	"sync"

	"github.com/alecthomas/types/optional"
	"github.com/shopspring/decimal"

	"cartsync/internal/model"
)

// Store holds one session's cart state.
//
// Consumers get copies through the exported readers. Every write goes through
// the Engine, which is why the writers below are unexported.
type Store struct {
	mu        sync.RWMutex
	items     []model.CartLineItem
	favorites []model.FavoriteItem
	err       optional.Option[string]
	loading   int // in-flight fetches

	// itemsGen and favsGen advance on every write to the respective list.
	// A fetch records them at start and is discarded if either moved.
	itemsGen uint64
	favsGen  uint64

	// versions holds the latest issued mutation per product.
	// inflight counts outstanding mutations per product.
	versions map[string]uint64
	inflight map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		items:     []model.CartLineItem{},
		favorites: []model.FavoriteItem{},
		versions:  make(map[string]uint64),
		inflight:  make(map[string]int),
	}
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() model.CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := model.CartState{
		Items:     s.items,
		Favorites: s.favorites,
		Loading:   s.loading > 0,
		Error:     s.err,
	}
	return state.Clone()
}

// Items returns a copy of the line items in server order.
func (s *Store) Items() []model.CartLineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneItems(s.items)
}

// Favorites returns a copy of the favorites list.
func (s *Store) Favorites() []model.FavoriteItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.FavoriteItem, len(s.favorites))
	copy(out, s.favorites)
	return out
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Err returns the message of the last failed operation, if any.
func (s *Store) Err() optional.Option[string] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Total is the cart total derived from the current items.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Total(s.items)
}

// Count is the number of units in the cart derived from the current items.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Count(s.items)
}

// Item returns the line item for a product.
func (s *Store) Item(productRef string) (model.CartLineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.items, productRef); i >= 0 {
		return s.items[i], true
	}
	return model.CartLineItem{}, false
}

// Favorite returns the favorites entry for a product.
func (s *Store) Favorite(productRef string) (model.FavoriteItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.favorites {
		if f.ProductRef == productRef {
			return f, true
		}
	}
	return model.FavoriteItem{}, false
}

// InFlight reports whether a mutation for the product is outstanding.
// UIs use it to disable per-item controls.
func (s *Store) InFlight(productRef string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight[productRef] > 0
}

func (s *Store) beginLoading() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

func (s *Store) endLoading() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
}

// generations returns the current list generations for a fetch to record.
func (s *Store) generations() (items, favs uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.itemsGen, s.favsGen
}

// beginMutation issues a new version for the product.
func (s *Store) beginMutation(productRef string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginMutationLocked(productRef)
}

func (s *Store) beginMutationLocked(productRef string) uint64 {
	s.versions[productRef]++
	s.inflight[productRef]++
	return s.versions[productRef]
}

func (s *Store) endMutation(productRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[productRef] <= 1 {
		delete(s.inflight, productRef)
		return
	}
	s.inflight[productRef]--
}

// optimistic issues a version for the product and sets its quantity in place.
// It returns the items as they were before the write and the items generation
// after it.
func (s *Store) optimistic(productRef string, quantity int) (version uint64, before []model.CartLineItem, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version = s.beginMutationLocked(productRef)
	before = model.CloneItems(s.items)

	if i := indexOf(s.items, productRef); i >= 0 {
		items := model.CloneItems(s.items)
		items[i].Quantity = optional.Some(quantity)
		s.items = items
	}
	s.itemsGen++
	return version, before, s.itemsGen
}

// applyItems replaces the items with a mutation response unless a newer
// mutation for the same product has been issued since.
func (s *Store) applyItems(productRef string, version uint64, items []model.CartLineItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[productRef] != version {
		return false
	}
	s.items = nonNil(items)
	s.itemsGen++
	s.err = optional.None[string]()
	return true
}

// rollback restores the items captured before an optimistic write.
//
// When nothing else touched the items since that write the snapshot is
// restored whole. Otherwise only the product's own line is put back, so a
// response applied for another product in the meantime survives.
func (s *Store) rollback(productRef string, version, gen uint64, before []model.CartLineItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[productRef] != version {
		return false
	}

	if s.itemsGen == gen {
		s.items = model.CloneItems(before)
	} else {
		s.items = restoreLine(s.items, before, productRef)
	}
	s.itemsGen++
	return true
}

// applyFetch replaces each list from an authoritative read, unless that list
// was written after the read started.
func (s *Store) applyFetch(itemsGen, favsGen uint64, items []model.CartLineItem, favs []model.FavoriteItem) (itemsApplied, favsApplied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.itemsGen == itemsGen {
		s.items = nonNil(items)
		s.itemsGen++
		itemsApplied = true
	}
	if s.favsGen == favsGen {
		if favs == nil {
			favs = []model.FavoriteItem{}
		}
		s.favorites = favs
		s.favsGen++
		favsApplied = true
	}
	if itemsApplied || favsApplied {
		s.err = optional.None[string]()
	}
	return itemsApplied, favsApplied
}

// clearItems empties the cart after the server confirmed a clear.
// Outstanding mutations are superseded so their responses cannot bring
// cleared lines back; the number superseded is returned.
func (s *Store) clearItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	superseded := 0
	for ref, n := range s.inflight {
		s.versions[ref]++
		superseded += n
	}
	s.items = []model.CartLineItem{}
	s.itemsGen++
	s.err = optional.None[string]()
	return superseded
}

// touchFavorites marks the favorites list as changed server side.
func (s *Store) touchFavorites() {
	s.mu.Lock()
	s.favsGen++
	s.mu.Unlock()
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	s.err = optional.Some(msg)
	s.mu.Unlock()
}

func indexOf(items []model.CartLineItem, productRef string) int {
	for i, item := range items {
		if item.ProductRef == productRef {
			return i
		}
	}
	return -1
}

// restoreLine puts the product's line from before back into current.
func restoreLine(current, before []model.CartLineItem, productRef string) []model.CartLineItem {
	out := model.CloneItems(current)
	prev := indexOf(before, productRef)
	cur := indexOf(out, productRef)

	switch {
	case prev >= 0 && cur >= 0:
		out[cur] = before[prev]
	case prev >= 0:
		out = append(out, before[prev])
	case cur >= 0:
		out = append(out[:cur], out[cur+1:]...)
	}
	return out
}

func nonNil(items []model.CartLineItem) []model.CartLineItem {
	if items == nil {
		return []model.CartLineItem{}
	}
	return items
}
