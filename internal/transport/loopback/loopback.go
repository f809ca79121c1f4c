// Package loopback implements an in-memory BLE stack for simulation and
// tests. The peripheral side satisfies server.Library; the central side is
// driven through Connect, Subscribe, Write, Read and Drain.
package loopback

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/srg/blehist/internal/server"
)

// DefaultQueueSize is the number of notifications kept before the oldest
// are overwritten.
const DefaultQueueSize uint32 = 1024

// ErrNotSubscribed is returned by Notify when no central listens.
var ErrNotSubscribed = errors.New("characteristic has no subscriber")

// Notification is a value delivered to the central.
type Notification struct {
	UUID  string
	Value []byte
}

type service struct {
	uuid    string
	started atomic.Bool
}

type characteristic struct {
	mu         sync.Mutex
	uuid       string
	service    string
	perm       server.Permission
	value      []byte
	callbacks  []server.WriteCallback
	subscribed bool
}

var _ server.Library = (*Library)(nil)

// Library is an in-memory server.Library.
//
// The notification queue overwrites the oldest entries when the central
// does not drain it in time, which models an unreliable notify link.
type Library struct {
	address string
	logger  *logrus.Logger

	services      *hashmap.Map[string, *service]
	chars         *hashmap.Map[string, *characteristic]
	notifications mpmc.RichOverlappedRingBuffer[Notification]
	dropped       atomic.Uint64
	connected     atomic.Int32

	mu          sync.Mutex
	order       []*characteristic // creation order; chars is for lookups only
	callbacks   server.ProviderCallbacks
	advData     []byte
	advertising bool
}

// New creates a loopback stack reporting the given device address.
func New(address string, queueSize uint32, logger *logrus.Logger) *Library {
	if queueSize == 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Library{
		address:       address,
		logger:        logger,
		services:      hashmap.New[string, *service](),
		chars:         hashmap.New[string, *characteristic](),
		notifications: mpmc.NewOverlappedRingBuffer[Notification](queueSize),
	}
}

// ----------------------------
// Peripheral side
// ----------------------------

func (l *Library) CreateService(uuid string) error {
	key := server.NormalizeUUID(uuid)
	if _, existing := l.services.GetOrInsert(key, &service{uuid: uuid}); existing {
		return fmt.Errorf("service %q: %w", uuid, server.ErrAlreadyExists)
	}
	return nil
}

func (l *Library) StartService(uuid string) error {
	svc, ok := l.services.Get(server.NormalizeUUID(uuid))
	if !ok {
		return &server.NotFoundError{Resource: "service", UUID: uuid}
	}
	svc.started.Store(true)
	return nil
}

func (l *Library) CreateCharacteristic(serviceUUID, charUUID string, perm server.Permission) error {
	svc, ok := l.services.Get(server.NormalizeUUID(serviceUUID))
	if !ok {
		return &server.NotFoundError{Resource: "service", UUID: serviceUUID}
	}
	if svc.started.Load() {
		return fmt.Errorf("service %q: %w", serviceUUID, server.ErrServiceStarted)
	}

	key := server.NormalizeUUID(charUUID)
	char := &characteristic{uuid: charUUID, service: svc.uuid, perm: perm}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, existing := l.chars.GetOrInsert(key, char); existing {
		return fmt.Errorf("characteristic %q: %w", charUUID, server.ErrAlreadyExists)
	}
	l.order = append(l.order, char)
	return nil
}

func (l *Library) SetValue(uuid string, value []byte) error {
	char, err := l.lookup(uuid)
	if err != nil {
		return err
	}
	char.mu.Lock()
	char.value = append([]byte(nil), value...)
	char.mu.Unlock()
	return nil
}

func (l *Library) Value(uuid string) ([]byte, error) {
	char, err := l.lookup(uuid)
	if err != nil {
		return nil, err
	}
	char.mu.Lock()
	defer char.mu.Unlock()
	return append([]byte(nil), char.value...), nil
}

func (l *Library) Notify(uuid string) error {
	char, err := l.lookup(uuid)
	if err != nil {
		return err
	}

	char.mu.Lock()
	if !char.perm.Has(server.PermNotify) {
		char.mu.Unlock()
		return fmt.Errorf("notify %q: %w", uuid, server.ErrNotPermitted)
	}
	if !char.subscribed || l.connected.Load() == 0 {
		char.mu.Unlock()
		return ErrNotSubscribed
	}
	n := Notification{UUID: char.uuid, Value: append([]byte(nil), char.value...)}
	char.mu.Unlock()

	overwrites, err := l.notifications.EnqueueM(n)
	if err != nil {
		return fmt.Errorf("notification queue: %w", err)
	}
	if overwrites > 0 {
		l.dropped.Add(uint64(overwrites))
		l.logger.WithField("dropped", overwrites).Debug("Notification queue overflow")
	}
	return nil
}

func (l *Library) OnWrite(uuid string, cb server.WriteCallback) error {
	char, err := l.lookup(uuid)
	if err != nil {
		return err
	}
	char.mu.Lock()
	char.callbacks = append(char.callbacks, cb)
	char.mu.Unlock()
	return nil
}

func (l *Library) HasConnectedCentrals() bool {
	return l.connected.Load() > 0
}

func (l *Library) SetAdvertisingData(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.advData = append([]byte(nil), data...)
	return nil
}

func (l *Library) StartAdvertising() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.advertising = true
	return nil
}

func (l *Library) StopAdvertising() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.advertising = false
	return nil
}

func (l *Library) DeviceAddress() string {
	return l.address
}

func (l *Library) SetProviderCallbacks(cb server.ProviderCallbacks) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = cb
}

// ----------------------------
// Central side
// ----------------------------

// Connect simulates a central connecting.
func (l *Library) Connect() {
	l.connected.Add(1)
	if cb := l.providerCallbacks(); cb != nil {
		cb.OnConnect()
	}
}

// Disconnect simulates the central going away; its subscriptions end.
func (l *Library) Disconnect() {
	if l.connected.Add(-1) < 0 {
		l.connected.Store(0)
	}
	for _, char := range l.characteristics() {
		char.mu.Lock()
		char.subscribed = false
		char.mu.Unlock()
	}
	if cb := l.providerCallbacks(); cb != nil {
		cb.OnDisconnect()
	}
}

// Subscribe enables notifications on uuid.
func (l *Library) Subscribe(uuid string) error {
	return l.setSubscription(uuid, true)
}

// Unsubscribe disables notifications on uuid.
func (l *Library) Unsubscribe(uuid string) error {
	return l.setSubscription(uuid, false)
}

// Write stores value and runs the peripheral's write callbacks.
func (l *Library) Write(uuid string, value []byte) error {
	char, err := l.lookup(uuid)
	if err != nil {
		return err
	}

	char.mu.Lock()
	if !char.perm.Has(server.PermWrite) {
		char.mu.Unlock()
		return fmt.Errorf("write %q: %w", uuid, server.ErrNotPermitted)
	}
	char.value = append([]byte(nil), value...)
	callbacks := append([]server.WriteCallback{}, char.callbacks...)
	char.mu.Unlock()

	for _, cb := range callbacks {
		cb(append([]byte(nil), value...))
	}
	return nil
}

// Read returns the value of a readable characteristic.
func (l *Library) Read(uuid string) ([]byte, error) {
	char, err := l.lookup(uuid)
	if err != nil {
		return nil, err
	}
	char.mu.Lock()
	defer char.mu.Unlock()
	if !char.perm.Has(server.PermRead) {
		return nil, fmt.Errorf("read %q: %w", uuid, server.ErrNotPermitted)
	}
	return append([]byte(nil), char.value...), nil
}

// Drain returns all queued notifications, oldest first.
func (l *Library) Drain() []Notification {
	var out []Notification
	for !l.notifications.IsEmpty() {
		n, err := l.notifications.Dequeue()
		if err != nil {
			break
		}
		out = append(out, n)
	}
	return out
}

// Dropped returns the number of notifications overwritten before Drain.
func (l *Library) Dropped() uint64 {
	return l.dropped.Load()
}

// Advertisement returns the current manufacturer data and whether the
// stack is advertising.
func (l *Library) Advertisement() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.advData...), l.advertising
}

// Characteristics returns the UUIDs of all characteristics of a service in
// creation order.
func (l *Library) Characteristics(serviceUUID string) []string {
	svc, ok := l.services.Get(server.NormalizeUUID(serviceUUID))
	if !ok {
		return nil
	}
	var out []string
	for _, char := range l.characteristics() {
		if char.service == svc.uuid {
			out = append(out, char.uuid)
		}
	}
	return out
}

// Permission returns the permissions of a characteristic.
func (l *Library) Permission(uuid string) (server.Permission, error) {
	char, err := l.lookup(uuid)
	if err != nil {
		return 0, err
	}
	return char.perm, nil
}

func (l *Library) setSubscription(uuid string, on bool) error {
	char, err := l.lookup(uuid)
	if err != nil {
		return err
	}

	char.mu.Lock()
	if !char.perm.Has(server.PermNotify) {
		char.mu.Unlock()
		return fmt.Errorf("subscribe %q: %w", uuid, server.ErrNotPermitted)
	}
	char.subscribed = on
	char.mu.Unlock()

	var value uint16
	if on {
		value = 1
	}
	if cb := l.providerCallbacks(); cb != nil {
		cb.OnSubscribe(char.uuid, value)
	}
	return nil
}

func (l *Library) lookup(uuid string) (*characteristic, error) {
	char, ok := l.chars.Get(server.NormalizeUUID(uuid))
	if !ok {
		return nil, &server.NotFoundError{Resource: "characteristic", UUID: uuid}
	}
	return char, nil
}

func (l *Library) characteristics() []*characteristic {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*characteristic{}, l.order...)
}

func (l *Library) providerCallbacks() server.ProviderCallbacks {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.callbacks
}
