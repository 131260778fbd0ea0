package contracts

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrUnknownGameType  = errors.New("game type is not registered")
	ErrUnhandledEvent   = errors.New("no handler registered for event")
	ErrDuplicateHandler = errors.New("handler is already registered for event")
	ErrInvalidEventName = errors.New("event name is not valid")
)

// reservedEventNames are routed by the core and can never be claimed by a
// game contract. connection:disconnect is synthesized by the transport, so
// a handler under that name could never be reached.
var reservedEventNames = map[string]struct{}{
	"ping":                  {},
	"display:join":          {},
	"player:join":           {},
	"game:start":            {},
	"game:next-round":       {},
	"player:submit":         {},
	"player:vote":           {},
	"connection:disconnect": {},
}

// Registry maps game types to their contracts and named custom-event
// handlers. Event names are validated at registration time so an unmatched
// name at dispatch is a typed ErrUnhandledEvent, never a silent miss.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]GameContract
	handlers  map[string]map[string]CustomEventHandler
}

func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[string]GameContract),
		handlers:  make(map[string]map[string]CustomEventHandler),
	}
}

func (registry *Registry) Register(gameType string, contract GameContract) error {
	if gameType == "" || contract == nil {
		return ErrUnknownGameType
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.contracts[gameType] = contract

	return nil
}

func (registry *Registry) RegisterCustomEvent(gameType, event string, handler CustomEventHandler) error {
	if err := validateEventName(event); err != nil {
		return err
	}

	if handler == nil {
		return ErrInvalidEventName
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, ok := registry.contracts[gameType]; !ok {
		return ErrUnknownGameType
	}

	if registry.handlers[gameType] == nil {
		registry.handlers[gameType] = make(map[string]CustomEventHandler)
	}

	if _, ok := registry.handlers[gameType][event]; ok {
		return ErrDuplicateHandler
	}

	registry.handlers[gameType][event] = handler

	return nil
}

func (registry *Registry) Contract(gameType string) (GameContract, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	contract, ok := registry.contracts[gameType]

	return contract, ok
}

func (registry *Registry) CustomEventHandler(gameType, event string) (CustomEventHandler, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if _, ok := registry.contracts[gameType]; !ok {
		return nil, ErrUnknownGameType
	}

	handler, ok := registry.handlers[gameType][event]

	if !ok {
		return nil, ErrUnhandledEvent
	}

	return handler, nil
}

// CanRestart asks the game type's contract whether a running game in the
// given phase may be restarted. Unregistered game types have no state
// machine to violate, so they restart freely.
func (registry *Registry) CanRestart(gameType, phase string) bool {
	contract, ok := registry.Contract(gameType)

	if !ok {
		return true
	}

	return contract.CanRestart(phase)
}

func validateEventName(event string) error {
	if event == "" || strings.ContainsAny(event, " \t\n") {
		return ErrInvalidEventName
	}

	if _, ok := reservedEventNames[event]; ok {
		return ErrInvalidEventName
	}

	return nil
}
