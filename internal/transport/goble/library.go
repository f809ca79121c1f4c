// Package goble adapts a go-ble device to server.Library so the BLE server
// runs as a real peripheral on Linux (HCI) or macOS (CoreBluetooth).
package goble

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blehist/internal/groutine"
	"github.com/srg/blehist/internal/server"
)

// ErrNotSubscribed is returned by Notify when no central listens.
var ErrNotSubscribed = errors.New("characteristic has no subscriber")

// Device is the part of ble.Device the peripheral uses.
type Device interface {
	AddService(svc *ble.Service) error
	AdvertiseMfgData(ctx context.Context, id uint16, b []byte) error
	Stop() error
}

var _ server.Library = (*Library)(nil)

type service struct {
	uuid    string
	ble     *ble.Service
	started bool
}

// Library serves GATT services over a go-ble device.
type Library struct {
	dev     Device
	address string
	logger  *logrus.Logger

	mu         sync.Mutex
	services   map[string]*service
	chars      map[string]*characteristic
	callbacks  server.ProviderCallbacks
	conns      map[ble.Conn]struct{}
	advData    []byte
	advertiser *groutine.Worker
}

// New wraps dev. address is reported by DeviceAddress and feeds the
// advertised device id.
func New(dev Device, address string, logger *logrus.Logger) *Library {
	if logger == nil {
		logger = logrus.New()
	}
	return &Library{
		dev:      dev,
		address:  address,
		logger:   logger,
		services: make(map[string]*service),
		chars:    make(map[string]*characteristic),
		conns:    make(map[ble.Conn]struct{}),
	}
}

// Open creates the platform device through DeviceFactory. When address is
// empty it is taken from the controller, if the device exposes it.
func Open(address string, logger *logrus.Logger) (*Library, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to open BLE device: %w", err)
	}
	if address == "" {
		if a, ok := dev.(interface{ Address() ble.Addr }); ok && a.Address() != nil {
			address = a.Address().String()
		}
	}
	return New(dev, address, logger), nil
}

// Close stops advertising and releases the device.
func (l *Library) Close() error {
	if err := l.StopAdvertising(); err != nil {
		return err
	}
	return l.dev.Stop()
}

func (l *Library) CreateService(uuid string) error {
	key := server.NormalizeUUID(uuid)
	u, err := ble.Parse(key)
	if err != nil {
		return fmt.Errorf("invalid service UUID %q: %w", uuid, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.services[key]; exists {
		return fmt.Errorf("service %q: %w", uuid, server.ErrAlreadyExists)
	}
	l.services[key] = &service{uuid: uuid, ble: ble.NewService(u)}
	return nil
}

func (l *Library) StartService(uuid string) error {
	l.mu.Lock()
	svc, ok := l.services[server.NormalizeUUID(uuid)]
	if !ok {
		l.mu.Unlock()
		return &server.NotFoundError{Resource: "service", UUID: uuid}
	}
	if svc.started {
		l.mu.Unlock()
		return nil
	}
	svc.started = true
	l.mu.Unlock()

	if err := l.dev.AddService(svc.ble); err != nil {
		return fmt.Errorf("failed to add service %s: %w", uuid, err)
	}
	l.logger.WithField("service", uuid).Debug("GATT service added")
	return nil
}

func (l *Library) CreateCharacteristic(serviceUUID, charUUID string, perm server.Permission) error {
	key := server.NormalizeUUID(charUUID)
	u, err := ble.Parse(key)
	if err != nil {
		return fmt.Errorf("invalid characteristic UUID %q: %w", charUUID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	svc, ok := l.services[server.NormalizeUUID(serviceUUID)]
	if !ok {
		return &server.NotFoundError{Resource: "service", UUID: serviceUUID}
	}
	if svc.started {
		return fmt.Errorf("service %q: %w", serviceUUID, server.ErrServiceStarted)
	}
	if _, exists := l.chars[key]; exists {
		return fmt.Errorf("characteristic %q: %w", charUUID, server.ErrAlreadyExists)
	}

	c := &characteristic{lib: l, uuid: charUUID, perm: perm}
	bc := svc.ble.NewCharacteristic(u)
	if perm.Has(server.PermRead) {
		bc.HandleRead(ble.ReadHandlerFunc(c.serveRead))
	}
	if perm.Has(server.PermWrite) {
		bc.HandleWrite(ble.WriteHandlerFunc(c.serveWrite))
	}
	if perm.Has(server.PermNotify) {
		bc.HandleNotify(ble.NotifyHandlerFunc(c.serveNotify))
	}
	l.chars[key] = c
	return nil
}

func (l *Library) SetValue(uuid string, value []byte) error {
	c, err := l.lookup(uuid)
	if err != nil {
		return err
	}
	c.setValue(value)
	return nil
}

func (l *Library) Value(uuid string) ([]byte, error) {
	c, err := l.lookup(uuid)
	if err != nil {
		return nil, err
	}
	return c.getValue(), nil
}

// Notify pushes the current value to every subscribed central.
func (l *Library) Notify(uuid string) error {
	c, err := l.lookup(uuid)
	if err != nil {
		return err
	}
	if !c.perm.Has(server.PermNotify) {
		return fmt.Errorf("notify %q: %w", uuid, server.ErrNotPermitted)
	}

	c.mu.Lock()
	value := append([]byte(nil), c.value...)
	notifiers := append([]ble.Notifier{}, c.notifiers...)
	c.mu.Unlock()

	if len(notifiers) == 0 {
		return ErrNotSubscribed
	}
	var errs []error
	for _, n := range notifiers {
		if _, err := n.Write(value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Library) OnWrite(uuid string, cb server.WriteCallback) error {
	c, err := l.lookup(uuid)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.callbacks = append(c.callbacks, cb)
	c.mu.Unlock()
	return nil
}

func (l *Library) HasConnectedCentrals() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns) > 0
}

func (l *Library) SetProviderCallbacks(cb server.ProviderCallbacks) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = cb
}

// SetAdvertisingData stores the manufacturer data block, company id first.
// It takes effect on the next StartAdvertising.
func (l *Library) SetAdvertisingData(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: manufacturer data needs a company id", server.ErrInvalidValueSize)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.advData = append([]byte(nil), data...)
	return nil
}

func (l *Library) StartAdvertising() error {
	if err := l.StopAdvertising(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.advData) < 2 {
		return fmt.Errorf("%w: no advertising data set", server.ErrInvalidValueSize)
	}
	id := binary.LittleEndian.Uint16(l.advData)
	payload := append([]byte(nil), l.advData[2:]...)

	l.advertiser = groutine.Go(context.Background(), "ble-advertise", func(ctx context.Context) {
		if err := l.dev.AdvertiseMfgData(ctx, id, payload); err != nil && ctx.Err() == nil {
			l.logger.WithError(err).Warn("Advertising stopped")
		}
	})
	return nil
}

func (l *Library) StopAdvertising() error {
	l.mu.Lock()
	w := l.advertiser
	l.advertiser = nil
	l.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	return nil
}

func (l *Library) DeviceAddress() string {
	return l.address
}

func (l *Library) lookup(uuid string) (*characteristic, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.chars[server.NormalizeUUID(uuid)]
	if !ok {
		return nil, &server.NotFoundError{Resource: "characteristic", UUID: uuid}
	}
	return c, nil
}

func (l *Library) providerCallbacks() server.ProviderCallbacks {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.callbacks
}

// trackConn reports a central the first time one of its requests arrives.
// go-ble has no peripheral-side connect event.
func (l *Library) trackConn(conn ble.Conn) {
	if conn == nil {
		return
	}
	l.mu.Lock()
	if _, known := l.conns[conn]; known {
		l.mu.Unlock()
		return
	}
	l.conns[conn] = struct{}{}
	cb := l.callbacks
	l.mu.Unlock()

	l.logger.WithField("central", remoteAddr(conn)).Info("Central connected")
	if cb != nil {
		cb.OnConnect()
	}

	if d, ok := conn.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(context.Background(), "ble-conn-watch", func(ctx context.Context) {
			<-d.Disconnected()
			l.dropConn(conn)
		})
	}
}

func (l *Library) dropConn(conn ble.Conn) {
	l.mu.Lock()
	if _, known := l.conns[conn]; !known {
		l.mu.Unlock()
		return
	}
	delete(l.conns, conn)
	cb := l.callbacks
	l.mu.Unlock()

	l.logger.WithField("central", remoteAddr(conn)).Info("Central disconnected")
	if cb != nil {
		cb.OnDisconnect()
	}
}

func remoteAddr(conn ble.Conn) string {
	if a, ok := conn.(interface{ RemoteAddr() ble.Addr }); ok && a.RemoteAddr() != nil {
		return a.RemoteAddr().String()
	}
	return "unknown"
}
