// Package channels implements the ref-counted registry of channel subscriptions.
//
// Registry is not safe for concurrent mutation. The owner is expected to funnel every
// call through a single writer (a goroutine owning it or a mutex around it).
package channels

import "sort"

// Hooks are notified about registry transitions. Nil hooks are skipped.
type Hooks[K comparable] struct {
	// ChannelAdded is called when the first subscriber registers on the channel.
	ChannelAdded func(channel string)

	// ChannelRemoved is called when the last subscriber leaves the channel.
	ChannelRemoved func(channel string)

	// KeyRemoved is called when the key is no longer subscribed to any channel.
	KeyRemoved func(key K)
}

// Subscriber is the registration of one key on the channel.
type Subscriber[K comparable, P any] struct {
	Key      K
	Payload  P
	RefCount int
}

type subscriptions[K comparable, P any] struct {
	order   []*Subscriber[K, P]
	entries map[K]*Subscriber[K, P]
}

// Registry maps channel name to the ordered set of its subscribers.
type Registry[K comparable, P any] struct {
	hooks    Hooks[K]
	channels map[string]*subscriptions[K, P]
	keys     map[K]map[string]struct{}
}

// New creates new registry.
func New[K comparable, P any](hooks Hooks[K]) *Registry[K, P] {
	return &Registry[K, P]{
		hooks:    hooks,
		channels: map[string]*subscriptions[K, P]{},
		keys:     map[K]map[string]struct{}{},
	}
}

// AddRef adds count references of key to the channel and returns the resulting ref count.
// Payload is stored only when the entry is created.
func (r *Registry[K, P]) AddRef(channel string, key K, payload P, count int) int {
	if count <= 0 {
		return r.RefCount(channel, key)
	}

	subs, exists := r.channels[channel]
	if !exists {
		subs = &subscriptions[K, P]{
			entries: map[K]*Subscriber[K, P]{},
		}
		r.channels[channel] = subs
	}

	entry, exists := subs.entries[key]
	if exists {
		entry.RefCount += count
		return entry.RefCount
	}

	entry = &Subscriber[K, P]{
		Key:      key,
		Payload:  payload,
		RefCount: count,
	}
	subs.entries[key] = entry
	subs.order = append(subs.order, entry)

	keyChannels, exists := r.keys[key]
	if !exists {
		keyChannels = map[string]struct{}{}
		r.keys[key] = keyChannels
	}
	keyChannels[channel] = struct{}{}

	if len(subs.order) == 1 && r.hooks.ChannelAdded != nil {
		r.hooks.ChannelAdded(channel)
	}

	return entry.RefCount
}

// Release drops one reference of key from the channel and returns the remaining ref count.
func (r *Registry[K, P]) Release(channel string, key K) int {
	subs, exists := r.channels[channel]
	if !exists {
		return 0
	}
	entry, exists := subs.entries[key]
	if !exists {
		return 0
	}

	entry.RefCount--
	if entry.RefCount > 0 {
		return entry.RefCount
	}

	r.remove(channel, key)
	return 0
}

// ReleaseAll drops all the references of key from the channel.
// It returns the number of references dropped.
func (r *Registry[K, P]) ReleaseAll(channel string, key K) int {
	subs, exists := r.channels[channel]
	if !exists {
		return 0
	}
	entry, exists := subs.entries[key]
	if !exists {
		return 0
	}

	count := entry.RefCount
	r.remove(channel, key)
	return count
}

// RemoveKey drops every subscription of the key. It returns channels the key was subscribed to.
func (r *Registry[K, P]) RemoveKey(key K) []string {
	keyChannels, exists := r.keys[key]
	if !exists {
		return nil
	}

	channels := make([]string, 0, len(keyChannels))
	for channel := range keyChannels {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	for _, channel := range channels {
		r.remove(channel, key)
	}
	return channels
}

// ForEachSubscriber calls fn for each subscriber of the channel in registration order.
// Registry may be modified by fn, changes are not visible to the ongoing iteration.
func (r *Registry[K, P]) ForEachSubscriber(channel string, fn func(sub Subscriber[K, P])) {
	for _, sub := range r.Subscribers(channel) {
		fn(sub)
	}
}

// Subscribers returns copy of the channel subscribers in registration order.
func (r *Registry[K, P]) Subscribers(channel string) []Subscriber[K, P] {
	subs, exists := r.channels[channel]
	if !exists {
		return nil
	}

	result := make([]Subscriber[K, P], 0, len(subs.order))
	for _, entry := range subs.order {
		result = append(result, *entry)
	}
	return result
}

// RefCount returns the number of references key holds on the channel.
func (r *Registry[K, P]) RefCount(channel string, key K) int {
	subs, exists := r.channels[channel]
	if !exists {
		return 0
	}
	if entry, exists := subs.entries[key]; exists {
		return entry.RefCount
	}
	return 0
}

// HasChannel returns true if anyone is subscribed to the channel.
func (r *Registry[K, P]) HasChannel(channel string) bool {
	_, exists := r.channels[channel]
	return exists
}

// HasKey returns true if key is subscribed to any channel.
func (r *Registry[K, P]) HasKey(key K) bool {
	_, exists := r.keys[key]
	return exists
}

// Channels returns sorted list of channels having subscribers.
func (r *Registry[K, P]) Channels() []string {
	channels := make([]string, 0, len(r.channels))
	for channel := range r.channels {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	return channels
}

// Clear drops every subscription without firing hooks.
func (r *Registry[K, P]) Clear() {
	r.channels = map[string]*subscriptions[K, P]{}
	r.keys = map[K]map[string]struct{}{}
}

func (r *Registry[K, P]) remove(channel string, key K) {
	subs := r.channels[channel]
	delete(subs.entries, key)
	for i, entry := range subs.order {
		if entry.Key == key {
			subs.order = append(subs.order[:i], subs.order[i+1:]...)
			break
		}
	}

	keyChannels := r.keys[key]
	delete(keyChannels, channel)
	keyRemoved := len(keyChannels) == 0
	if keyRemoved {
		delete(r.keys, key)
	}

	if len(subs.order) == 0 {
		delete(r.channels, channel)
		if r.hooks.ChannelRemoved != nil {
			r.hooks.ChannelRemoved(channel)
		}
	}
	if keyRemoved && r.hooks.KeyRemoved != nil {
		r.hooks.KeyRemoved(key)
	}
}
