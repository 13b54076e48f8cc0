package monitor

import (
	"log"
	"sync"

	"github.com/folajindayo/zoracle-telegram-sub001/models"
	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

// Category scopes a listener to one class of classified transactions.
type Category string

const (
	CategorySwap     Category = "swap"
	CategoryTransfer Category = "transfer"
	CategoryApproval Category = "approval"
	CategoryContent  Category = "content"
	// CategoryAny matches every classified transaction.
	CategoryAny Category = "any"
)

// categoryOf maps a trade kind to its listener category.
func categoryOf(kind models.TradeKind) Category {
	switch kind {
	case models.TradeKindBuy, models.TradeKindSell, models.TradeKindTokenToToken:
		return CategorySwap
	case models.TradeKindTransfer:
		return CategoryTransfer
	case models.TradeKindApproval:
		return CategoryApproval
	case models.TradeKindContentCreate:
		return CategoryContent
	}
	return CategoryAny
}

// Predicate filters intents before a listener's callback fires.
type Predicate func(intent *models.TradeIntent) bool

// Callback receives a matched intent. Callbacks run isolated: a panic
// or slow callback never affects other listeners.
type Callback func(intent *models.TradeIntent)

// ListenerOptions carries optional scoping data for a registration.
type ListenerOptions struct {
	TargetWallet string
	TokenAddress string
}

type registration struct {
	id        string
	category  Category
	predicate Predicate
	callback  Callback
	opts      ListenerOptions
}

// ListenerRegistry is the pub/sub table between the classifier and
// interested consumers. Registrations are owned here; dispatch order
// across listeners is unspecified.
type ListenerRegistry struct {
	mu            sync.RWMutex
	registrations map[string]*registration

	statsMu    sync.Mutex
	dispatched int64
}

// NewListenerRegistry creates an empty registry.
func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{registrations: make(map[string]*registration)}
}

// Register adds a listener. Returns false when any required field is
// missing or the id is already taken.
func (r *ListenerRegistry) Register(id string, category Category, predicate Predicate, callback Callback, opts ListenerOptions) bool {
	if id == "" || category == "" || predicate == nil || callback == nil {
		return false
	}

	opts.TargetWallet = utils.NormalizeAddress(opts.TargetWallet)
	opts.TokenAddress = utils.NormalizeAddress(opts.TokenAddress)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.registrations[id]; exists {
		return false
	}
	r.registrations[id] = &registration{
		id:        id,
		category:  category,
		predicate: predicate,
		callback:  callback,
		opts:      opts,
	}
	log.Printf("[Registry] Registered listener %s (category=%s)", id, category)
	return true
}

// Unregister removes a listener; false when the id is unknown.
func (r *ListenerRegistry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.registrations[id]; !exists {
		return false
	}
	delete(r.registrations, id)
	log.Printf("[Registry] Unregistered listener %s", id)
	return true
}

// Has reports whether a listener id is registered.
func (r *ListenerRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.registrations[id]
	return ok
}

// Len returns the number of live registrations.
func (r *ListenerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.registrations)
}

// Dispatched returns how many callbacks have been invoked.
func (r *ListenerRegistry) Dispatched() int64 {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.dispatched
}

// Dispatch fans a classified intent out to every matching listener.
// Matching registrations are snapshotted under the lock; callbacks run
// outside it so a registering/unregistering listener never deadlocks,
// and each callback is isolated behind a recover guard.
func (r *ListenerRegistry) Dispatch(intent *models.TradeIntent) {
	category := categoryOf(intent.Kind)

	r.mu.RLock()
	matched := make([]*registration, 0, len(r.registrations))
	for _, reg := range r.registrations {
		if reg.category != CategoryAny && reg.category != category {
			continue
		}
		matched = append(matched, reg)
	}
	r.mu.RUnlock()

	for _, reg := range matched {
		r.invoke(reg, intent)
	}
}

func (r *ListenerRegistry) invoke(reg *registration, intent *models.TradeIntent) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Registry] Listener %s panicked: %v", reg.id, rec)
		}
	}()

	if !reg.predicate(intent) {
		return
	}

	r.statsMu.Lock()
	r.dispatched++
	r.statsMu.Unlock()

	reg.callback(intent)
}
