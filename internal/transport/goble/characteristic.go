package goble

import (
	"sync"

	"github.com/go-ble/ble"
	"github.com/srg/blehist/internal/server"
)

type characteristic struct {
	lib  *Library
	uuid string
	perm server.Permission

	mu        sync.Mutex
	value     []byte
	callbacks []server.WriteCallback
	notifiers []ble.Notifier
}

func (c *characteristic) setValue(value []byte) {
	c.mu.Lock()
	c.value = append([]byte(nil), value...)
	c.mu.Unlock()
}

func (c *characteristic) getValue() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.value...)
}

func (c *characteristic) serveRead(req ble.Request, rsp ble.ResponseWriter) {
	c.lib.trackConn(req.Conn())

	value := c.getValue()
	offset := req.Offset()
	if offset > len(value) {
		rsp.SetStatus(ble.ErrInvalidOffset)
		return
	}
	if _, err := rsp.Write(value[offset:]); err != nil {
		c.lib.logger.WithError(err).WithField("uuid", c.uuid).Debug("Read response truncated")
	}
}

func (c *characteristic) serveWrite(req ble.Request, _ ble.ResponseWriter) {
	c.lib.trackConn(req.Conn())

	data := append([]byte(nil), req.Data()...)
	c.mu.Lock()
	c.value = data
	callbacks := append([]server.WriteCallback{}, c.callbacks...)
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb(append([]byte(nil), data...))
	}
}

// serveNotify blocks for the lifetime of the subscription.
func (c *characteristic) serveNotify(req ble.Request, n ble.Notifier) {
	c.lib.trackConn(req.Conn())

	c.mu.Lock()
	c.notifiers = append(c.notifiers, n)
	c.mu.Unlock()

	if cb := c.lib.providerCallbacks(); cb != nil {
		cb.OnSubscribe(c.uuid, 1)
	}

	<-n.Context().Done()

	c.mu.Lock()
	for i, other := range c.notifiers {
		if other == n {
			c.notifiers = append(c.notifiers[:i], c.notifiers[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if cb := c.lib.providerCallbacks(); cb != nil {
		cb.OnSubscribe(c.uuid, 0)
	}
}
