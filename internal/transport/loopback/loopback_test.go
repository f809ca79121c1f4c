package loopback

import (
	"fmt"
	"sync"
	"testing"

	"github.com/srg/blehist/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testService = "0000aaaa-1111-2222-3333-444455556666"
	testRead    = "0000aaab-1111-2222-3333-444455556666"
	testWrite   = "0000aaac-1111-2222-3333-444455556666"
	testNotify  = "0000aaad-1111-2222-3333-444455556666"
)

type recordingCallbacks struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingCallbacks) record(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingCallbacks) OnConnect()    { r.record("connect") }
func (r *recordingCallbacks) OnDisconnect() { r.record("disconnect") }
func (r *recordingCallbacks) OnSubscribe(uuid string, value uint16) {
	r.record(fmt.Sprintf("subscribe %s %d", server.NormalizeUUID(uuid), value))
}

func newTestLibrary(t *testing.T, queueSize uint32) (*Library, *recordingCallbacks) {
	t.Helper()
	lib := New("AA:BB:CC:DD:EE:FF", queueSize, nil)
	cb := &recordingCallbacks{}
	lib.SetProviderCallbacks(cb)

	require.NoError(t, lib.CreateService(testService))
	require.NoError(t, lib.CreateCharacteristic(testService, testRead, server.PermRead))
	require.NoError(t, lib.CreateCharacteristic(testService, testWrite, server.PermWrite))
	require.NoError(t, lib.CreateCharacteristic(testService, testNotify, server.PermNotify))
	require.NoError(t, lib.StartService(testService))
	return lib, cb
}

func TestLibrary_ServiceLifecycle(t *testing.T) {
	lib, _ := newTestLibrary(t, 0)

	assert.ErrorIs(t, lib.CreateService(testService), server.ErrAlreadyExists)
	assert.ErrorIs(t, lib.CreateCharacteristic(testService, "0000ffff-1111-2222-3333-444455556666", server.PermRead),
		server.ErrServiceStarted, "characteristics MUST NOT be added to a started service")
	assert.ErrorIs(t, lib.CreateCharacteristic("1234", "5678", server.PermRead), server.ErrServiceNotFound)
	assert.ErrorIs(t, lib.StartService("1234"), server.ErrServiceNotFound)
	assert.Equal(t, []string{testRead, testWrite, testNotify}, lib.Characteristics(testService))

	perm, err := lib.Permission(testWrite)
	require.NoError(t, err)
	assert.Equal(t, server.PermWrite, perm)
}

func TestLibrary_ValuesAndPermissions(t *testing.T) {
	lib, _ := newTestLibrary(t, 0)

	require.NoError(t, lib.SetValue(testRead, []byte{1, 2}))
	got, err := lib.Read(testRead)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)

	// UUID lookups are normalized
	got, err = lib.Value("0000AAAB111122223333444455556666")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)

	assert.ErrorIs(t, lib.Write(testRead, []byte{9}), server.ErrNotPermitted)
	_, err = lib.Read(testWrite)
	assert.ErrorIs(t, err, server.ErrNotPermitted)
	assert.ErrorIs(t, lib.SetValue("beef", nil), server.ErrCharacteristicNotFound)
}

func TestLibrary_WriteRunsCallbacks(t *testing.T) {
	lib, _ := newTestLibrary(t, 0)

	var got [][]byte
	require.NoError(t, lib.OnWrite(testWrite, func(v []byte) { got = append(got, v) }))
	require.NoError(t, lib.OnWrite(testWrite, func(v []byte) { got = append(got, append(v, 0xFF)) }))

	require.NoError(t, lib.Write(testWrite, []byte{7}))

	assert.Equal(t, [][]byte{{7}, {7, 0xFF}}, got, "callbacks MUST run in registration order")
	value, err := lib.Value(testWrite)
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, value)
}

func TestLibrary_NotifyRequiresSubscriber(t *testing.T) {
	lib, cb := newTestLibrary(t, 0)
	require.NoError(t, lib.SetValue(testNotify, []byte{1}))

	assert.ErrorIs(t, lib.Notify(testNotify), ErrNotSubscribed)
	assert.ErrorIs(t, lib.Notify(testRead), server.ErrNotPermitted)
	assert.ErrorIs(t, lib.Subscribe(testRead), server.ErrNotPermitted)

	lib.Connect()
	require.NoError(t, lib.Subscribe(testNotify))
	require.NoError(t, lib.Notify(testNotify))
	require.NoError(t, lib.SetValue(testNotify, []byte{2}))
	require.NoError(t, lib.Notify(testNotify))

	notifications := lib.Drain()
	require.Len(t, notifications, 2)
	assert.Equal(t, []byte{1}, notifications[0].Value)
	assert.Equal(t, []byte{2}, notifications[1].Value)
	assert.Equal(t, testNotify, notifications[0].UUID)
	assert.Empty(t, lib.Drain())

	lib.Disconnect()
	assert.ErrorIs(t, lib.Notify(testNotify), ErrNotSubscribed, "disconnect MUST end subscriptions")

	key := server.NormalizeUUID(testNotify)
	assert.Equal(t, []string{"connect", "subscribe " + key + " 1", "disconnect"}, cb.events)
}

func TestLibrary_ReconnectRequiresResubscribe(t *testing.T) {
	// GOAL: Verify no subscription survives a connection boundary, whatever the table size
	//
	// TEST SCENARIO: download service layout, packet characteristic created last →
	// subscribe, disconnect, connect → notify fails and nothing is queued

	lib := New("AA:BB:CC:DD:EE:FF", 0, nil)
	require.NoError(t, lib.CreateService(server.DownloadServiceUUID))
	for _, c := range []struct {
		uuid string
		perm server.Permission
	}{
		{server.HistoryIntervalUUID, server.PermReadWrite},
		{server.NumberOfSamplesUUID, server.PermRead},
		{server.RequestedSamplesUUID, server.PermWrite},
		{server.DownloadPacketUUID, server.PermNotify},
	} {
		require.NoError(t, lib.CreateCharacteristic(server.DownloadServiceUUID, c.uuid, c.perm))
	}
	require.NoError(t, lib.StartService(server.DownloadServiceUUID))

	assert.Equal(t, []string{
		server.HistoryIntervalUUID,
		server.NumberOfSamplesUUID,
		server.RequestedSamplesUUID,
		server.DownloadPacketUUID,
	}, lib.Characteristics(server.DownloadServiceUUID), "every characteristic MUST be listed")

	lib.Connect()
	require.NoError(t, lib.Subscribe(server.DownloadPacketUUID))
	require.NoError(t, lib.SetValue(server.DownloadPacketUUID, []byte{1}))
	require.NoError(t, lib.Notify(server.DownloadPacketUUID))
	require.Len(t, lib.Drain(), 1)

	lib.Disconnect()
	lib.Connect()

	assert.ErrorIs(t, lib.Notify(server.DownloadPacketUUID), ErrNotSubscribed,
		"a reconnected central MUST subscribe again")
	assert.Empty(t, lib.Drain())
}

func TestLibrary_QueueOverwritesOldest(t *testing.T) {
	// GOAL: Verify a slow central loses the oldest notifications, not the newest
	//
	// TEST SCENARIO: tiny queue → many notifications without draining → dropped > 0, last value preserved

	lib, _ := newTestLibrary(t, 4)
	lib.Connect()
	require.NoError(t, lib.Subscribe(testNotify))

	for i := 0; i < 32; i++ {
		require.NoError(t, lib.SetValue(testNotify, []byte{byte(i)}))
		require.NoError(t, lib.Notify(testNotify))
	}

	notifications := lib.Drain()
	require.NotEmpty(t, notifications)
	assert.Less(t, len(notifications), 32)
	assert.Positive(t, lib.Dropped(), "overflow MUST be counted")
	assert.Equal(t, []byte{31}, notifications[len(notifications)-1].Value, "newest notification MUST survive")
}

func TestLibrary_Advertising(t *testing.T) {
	lib, _ := newTestLibrary(t, 0)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", lib.DeviceAddress())

	require.NoError(t, lib.SetAdvertisingData([]byte{0xD5, 0x06}))
	require.NoError(t, lib.StartAdvertising())
	data, on := lib.Advertisement()
	assert.True(t, on)
	assert.Equal(t, []byte{0xD5, 0x06}, data)

	require.NoError(t, lib.StopAdvertising())
	_, on = lib.Advertisement()
	assert.False(t, on)
}
