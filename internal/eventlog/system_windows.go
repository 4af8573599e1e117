//go:build windows

package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"winsentry/internal/model"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/windows"
)

var (
	modwevtapi = windows.NewLazySystemDLL("wevtapi.dll")

	procEvtOpenSession           = modwevtapi.NewProc("EvtOpenSession")
	procEvtQuery                 = modwevtapi.NewProc("EvtQuery")
	procEvtNext                  = modwevtapi.NewProc("EvtNext")
	procEvtCreateRenderContext   = modwevtapi.NewProc("EvtCreateRenderContext")
	procEvtRender                = modwevtapi.NewProc("EvtRender")
	procEvtOpenPublisherMetadata = modwevtapi.NewProc("EvtOpenPublisherMetadata")
	procEvtFormatMessage         = modwevtapi.NewProc("EvtFormatMessage")
	procEvtClose                 = modwevtapi.NewProc("EvtClose")
)

const (
	evtQueryChannelPath      = 0x1
	evtQueryForwardDirection = 0x100
	evtQueryReverseDirection = 0x200

	evtRenderContextSystem = 1
	evtRenderEventValues   = 0
	evtFormatMessageEvent  = 1
	evtRpcLogin            = 1

	evtVarTypeString   = 1
	evtVarTypeUInt16   = 6
	evtVarTypeUInt64   = 10
	evtVarTypeFileTime = 17

	// indices into the system render context
	sysProviderName = 0
	sysEventID      = 2
	sysTimeCreated  = 8
	sysRecordID     = 9

	nextTimeoutMillis = 1000
)

type evtHandle uintptr

type evtVariant struct {
	Value uint64
	Count uint32
	Type  uint32
}

type evtRPCLogin struct {
	Server   *uint16
	User     *uint16
	Domain   *uint16
	Password *uint16
	Flags    uint32
}

// systemQuery owns its session and the publisher metadata opened through it.
type systemQuery struct {
	session    evtHandle
	results    evtHandle
	dir        Direction
	publishers map[string]evtHandle
}

// SystemChannel reads the host event log through the Windows Event Log API.
type SystemChannel struct {
	batchSize int
	render    evtHandle

	mu      sync.Mutex
	nextID  Handle
	queries map[Handle]*systemQuery
}

func NewSystemChannel(batchSize int) (Channel, error) {
	if err := modwevtapi.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	r1, _, err := procEvtCreateRenderContext.Call(0, 0, evtRenderContextSystem)
	if r1 == 0 {
		return nil, fmt.Errorf("failed to create render context: %w", err)
	}
	return &SystemChannel{
		batchSize: batchSize,
		render:    evtHandle(r1),
		queries:   make(map[Handle]*systemQuery),
	}, nil
}

func (c *SystemChannel) Open(ctx context.Context, server, name string) (Handle, error) {
	var session evtHandle
	if server != "" && !strings.EqualFold(server, "localhost") && server != "." {
		s, err := openSession(server)
		if err != nil {
			return 0, wrapWinErr(name, err)
		}
		session = s
	}

	path, err := windows.UTF16PtrFromString(name)
	if err != nil {
		closeHandle(session)
		return 0, err
	}
	query, _ := windows.UTF16PtrFromString("*")
	r1, _, callErr := procEvtQuery.Call(
		uintptr(session),
		uintptr(unsafe.Pointer(path)),
		uintptr(unsafe.Pointer(query)),
		evtQueryChannelPath|evtQueryReverseDirection,
	)
	if r1 == 0 {
		closeHandle(session)
		return 0, wrapWinErr(name, callErr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	h := c.nextID
	c.queries[h] = &systemQuery{
		session:    session,
		results:    evtHandle(r1),
		dir:        Backward,
		publishers: make(map[string]evtHandle),
	}
	return h, nil
}

func (c *SystemChannel) ReadBatch(ctx context.Context, h Handle, dir Direction) ([]Record, error) {
	c.mu.Lock()
	q, ok := c.queries[h]
	c.mu.Unlock()
	if !ok {
		return nil, ErrUnknownHandle
	}
	if dir != q.dir {
		return nil, fmt.Errorf("%w: query was opened %s", ErrUnsupportedDirection, q.dir)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	handles := make([]evtHandle, c.batchSize)
	var returned uint32
	r1, _, callErr := procEvtNext.Call(
		uintptr(q.results),
		uintptr(len(handles)),
		uintptr(unsafe.Pointer(&handles[0])),
		nextTimeoutMillis,
		0,
		uintptr(unsafe.Pointer(&returned)),
	)
	if r1 == 0 {
		if errors.Is(callErr, windows.ERROR_NO_MORE_ITEMS) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("EvtNext: %w", callErr)
	}

	records := make([]Record, 0, returned)
	for _, ev := range handles[:returned] {
		records = append(records, c.renderEvent(q, ev))
		closeHandle(ev)
	}
	return records, nil
}

func (c *SystemChannel) Close(h Handle) error {
	c.mu.Lock()
	q, ok := c.queries[h]
	delete(c.queries, h)
	if ok {
		for provider, meta := range q.publishers {
			closeHandle(meta)
			delete(q.publishers, provider)
		}
	}
	c.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}
	closeHandle(q.results)
	closeHandle(q.session)
	return nil
}

func (c *SystemChannel) renderEvent(q *systemQuery, ev evtHandle) Record {
	sys, err := c.renderSystem(ev)
	if err != nil {
		log.Debug().Err(err).Int64("event_id", sys.eventID).Msg("Event could not be rendered")
		return Record{Event: model.RawEvent{ID: sys.eventID}, Err: fmt.Errorf("%w: %v", ErrMalformedEvent, err)}
	}
	event := model.RawEvent{
		ID:        sys.eventID,
		Timestamp: sys.created,
		Source:    sys.provider,
	}

	msg, err := c.formatMessage(q, sys.provider, ev)
	if err != nil {
		log.Debug().Err(err).Int64("event_id", event.ID).Str("provider", sys.provider).Msg("Event message could not be formatted")
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "No Message Content"
	}
	event.Message = msg
	return Record{Event: event}
}

type systemValues struct {
	provider string
	eventID  int64
	created  time.Time
	recordID uint64
}

func (c *SystemChannel) renderSystem(ev evtHandle) (systemValues, error) {
	var used, count uint32
	procEvtRender.Call(uintptr(c.render), uintptr(ev), evtRenderEventValues, 0, 0,
		uintptr(unsafe.Pointer(&used)), uintptr(unsafe.Pointer(&count)))
	if used == 0 {
		return systemValues{}, errors.New("EvtRender returned no data")
	}
	buf := make([]byte, used)
	r1, _, callErr := procEvtRender.Call(uintptr(c.render), uintptr(ev), evtRenderEventValues,
		uintptr(used), uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&used)), uintptr(unsafe.Pointer(&count)))
	if r1 == 0 {
		return systemValues{}, fmt.Errorf("EvtRender: %w", callErr)
	}
	if count <= sysRecordID {
		return systemValues{}, fmt.Errorf("EvtRender returned %d system properties", count)
	}

	// string values point into buf, so everything is resolved here
	values := unsafe.Slice((*evtVariant)(unsafe.Pointer(&buf[0])), count)
	out := systemValues{provider: model.Unknown}
	if v := values[sysProviderName]; v.Type == evtVarTypeString && v.Value != 0 {
		out.provider = windows.UTF16PtrToString((*uint16)(unsafe.Pointer(uintptr(v.Value))))
	}
	if v := values[sysEventID]; v.Type == evtVarTypeUInt16 {
		out.eventID = int64(uint16(v.Value))
	} else {
		return out, fmt.Errorf("unexpected event id variant type %d", v.Type)
	}
	if v := values[sysTimeCreated]; v.Type == evtVarTypeFileTime {
		out.created = fileTimeToTime(v.Value)
	}
	if v := values[sysRecordID]; v.Type == evtVarTypeUInt64 {
		out.recordID = v.Value
	}
	return out, nil
}

func (c *SystemChannel) formatMessage(q *systemQuery, provider string, ev evtHandle) (string, error) {
	meta, err := c.publisher(q, provider)
	if err != nil {
		return "", err
	}
	var used uint32
	procEvtFormatMessage.Call(uintptr(meta), uintptr(ev), 0, 0, 0, evtFormatMessageEvent, 0, 0,
		uintptr(unsafe.Pointer(&used)))
	if used == 0 {
		return "", errors.New("EvtFormatMessage returned no data")
	}
	buf := make([]uint16, used)
	r1, _, callErr := procEvtFormatMessage.Call(uintptr(meta), uintptr(ev), 0, 0, 0, evtFormatMessageEvent,
		uintptr(used), uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&used)))
	if r1 == 0 {
		return "", fmt.Errorf("EvtFormatMessage: %w", callErr)
	}
	return windows.UTF16ToString(buf), nil
}

// publisher returns the metadata handle for provider, opened through the
// query's session so a remote query never formats with local metadata.
func (c *SystemChannel) publisher(q *systemQuery, provider string) (evtHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h := q.publishers[provider]; h != 0 {
		return h, nil
	}
	name, err := windows.UTF16PtrFromString(provider)
	if err != nil {
		return 0, err
	}
	r1, _, callErr := procEvtOpenPublisherMetadata.Call(uintptr(q.session), uintptr(unsafe.Pointer(name)), 0, 0, 0)
	if r1 == 0 {
		return 0, fmt.Errorf("EvtOpenPublisherMetadata %s: %w", provider, callErr)
	}
	q.publishers[provider] = evtHandle(r1)
	return evtHandle(r1), nil
}

func openSession(server string) (evtHandle, error) {
	host, err := windows.UTF16PtrFromString(server)
	if err != nil {
		return 0, err
	}
	login := evtRPCLogin{Server: host}
	r1, _, callErr := procEvtOpenSession.Call(evtRpcLogin, uintptr(unsafe.Pointer(&login)), 0, 0)
	if r1 == 0 {
		return 0, fmt.Errorf("EvtOpenSession %s: %w", server, callErr)
	}
	return evtHandle(r1), nil
}

func wrapWinErr(channel string, err error) error {
	if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		return &AccessDeniedError{Channel: channel, Err: err}
	}
	return fmt.Errorf("EvtQuery %s: %w", channel, err)
}

func closeHandle(h evtHandle) {
	if h != 0 {
		procEvtClose.Call(uintptr(h))
	}
}

func fileTimeToTime(ft uint64) time.Time {
	f := windows.Filetime{LowDateTime: uint32(ft), HighDateTime: uint32(ft >> 32)}
	return time.Unix(0, f.Nanoseconds())
}
