package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// Connection lifecycle:
//
//	Disconnected -> Connecting -> SocketAttached -> Live -> Disconnected
//
// Connecting issues the snapshot call and hydrates the store. SocketAttached
// opens the streaming transport. Live forwards inbound frames to the
// dispatcher and accepts outbound sends. On transport loss the session flags
// and authenticated user are cleared, a disconnect notification fires, and
// with auto-reconnect configured the machine re-enters Connecting with a
// full snapshot refetch. The stream offers no resume cursor.
type ClientState string

const (
	ClientStateDisconnected   ClientState = "Disconnected"
	ClientStateConnecting     ClientState = "Connecting"
	ClientStateSocketAttached ClientState = "SocketAttached"
	ClientStateLive           ClientState = "Live"
)

type ConnectSettings struct {
	SimpleLatest bool
	NoUnreads    bool
	MpimAware    bool

	PingInterval      time.Duration
	InactivityTimeout time.Duration
	AutoReconnect     bool
	ReconnectTimeout  time.Duration

	WsHandshakeTimeout time.Duration
	WriteTimeout       time.Duration
}

func DefaultConnectSettings() *ConnectSettings {
	return &ConnectSettings{
		PingInterval:       30 * time.Second,
		InactivityTimeout:  90 * time.Second,
		ReconnectTimeout:   5 * time.Second,
		WsHandshakeTimeout: 10 * time.Second,
		WriteTimeout:       10 * time.Second,
	}
}

type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	api        *PlatformApi
	instanceId Id

	stateLock sync.Mutex

	state         ClientState
	connected     bool
	authenticated bool
	store         *Store
	settings      *ConnectSettings
	runStarted    bool

	ws        *websocket.Conn
	writeLock sync.Mutex

	nextMessageId int64
	pingTime      time.Time
	pongTime      time.Time
	roundTrip     time.Duration

	// notifications queued while the state lock is held, delivered after
	// release so listeners can call back into the client
	pending []*Notification

	notificationCallbacks *CallbackList[NotificationFunction]
}

func NewClient(apiUrl string, token string) (*Client, error) {
	return NewClientWithContext(context.Background(), apiUrl, token)
}

func NewClientWithContext(ctx context.Context, apiUrl string, token string) (*Client, error) {
	cancelCtx, cancel := context.WithCancel(ctx)
	api, err := NewPlatformApiWithContext(cancelCtx, apiUrl, token)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Client{
		ctx:                   cancelCtx,
		cancel:                cancel,
		api:                   api,
		instanceId:            NewId(),
		state:                 ClientStateDisconnected,
		store:                 NewStore(),
		notificationCallbacks: NewCallbackList[NotificationFunction](),
	}, nil
}

func (self *Client) AddNotificationCallback(notificationCallback NotificationFunction) func() {
	callbackId := self.notificationCallbacks.Add(notificationCallback)
	return func() {
		self.notificationCallbacks.Remove(callbackId)
	}
}

func (self *Client) InstanceId() Id {
	return self.instanceId
}

func (self *Client) State() ClientState {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.state
}

func (self *Client) Connected() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.connected
}

func (self *Client) Authenticated() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.authenticated
}

// Store returns the live store. It is mutated by the reconcile flow; read
// while holding no expectation of stability across events. Use WithStore
// for reads concurrent with an active session.
func (self *Client) Store() *Store {
	return self.store
}

// WithStore runs f with the reconcile flow paused. f must not retain the
// store or any entity past the call.
func (self *Client) WithStore(f func(store *Store)) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	f(self.store)
}

func (self *Client) RoundTrip() time.Duration {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.roundTrip
}

// Connect starts the lifecycle with the given settings. It is asynchronous;
// progress is observed via State and notifications. A second call while the
// lifecycle is running is a no-op.
func (self *Client) Connect(settings *ConnectSettings) {
	if settings == nil {
		settings = DefaultConnectSettings()
	}
	self.stateLock.Lock()
	if self.runStarted {
		self.stateLock.Unlock()
		return
	}
	self.runStarted = true
	self.settings = settings
	self.stateLock.Unlock()

	go self.run(settings)
}

func (self *Client) Close() {
	self.cancel()
	self.stateLock.Lock()
	ws := self.ws
	self.stateLock.Unlock()
	if ws != nil {
		ws.Close()
	}
}

func (self *Client) run(settings *ConnectSettings) {
	for {
		err := self.connectOnce(settings)

		select {
		case <-self.ctx.Done():
			return
		default:
		}

		if !settings.AutoReconnect {
			return
		}
		if err != nil {
			// connection setup failed; back off before the refetch
			select {
			case <-self.ctx.Done():
				return
			case <-time.After(settings.ReconnectTimeout):
			}
		}
	}
}

// connectOnce drives one full pass of the state machine and returns when
// the session ends. A non-nil error means setup failed before Live.
func (self *Client) connectOnce(settings *ConnectSettings) error {
	self.setState(ClientStateConnecting)

	callback, result := NewBlockingApiCallback[*Snapshot]()
	self.api.SnapshotStart(&SnapshotStartArgs{
		SimpleLatest: settings.SimpleLatest,
		NoUnreads:    settings.NoUnreads,
		MpimAware:    settings.MpimAware,
	}, callback)

	var snapshot *Snapshot
	select {
	case <-self.ctx.Done():
		// abandoned mid-connect; the store keeps whatever the previous
		// session left
		self.setState(ClientStateDisconnected)
		return self.ctx.Err()
	case r := <-result:
		if r.Error != nil {
			glog.Infof("[c]snapshot error = %s\n", r.Error)
			self.setState(ClientStateDisconnected)
			return r.Error
		}
		snapshot = r.Result
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if err := self.store.Hydrate(snapshot); err != nil {
			glog.Infof("[c]hydrate error = %s\n", err)
		}
	}()

	dialer := &websocket.Dialer{
		HandshakeTimeout: settings.WsHandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(self.ctx, snapshot.Url, nil)
	if err != nil {
		glog.Infof("[c]socket dial error = %s\n", err)
		self.setState(ClientStateDisconnected)
		return err
	}

	self.stateLock.Lock()
	self.ws = ws
	self.state = ClientStateSocketAttached
	self.stateLock.Unlock()

	// the keepalive handshake is bidirectional and symmetric:
	// reply to a ping with a pong, answer a pong with a ping
	ws.SetPingHandler(func(appData string) error {
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(settings.WriteTimeout))
	})
	ws.SetPongHandler(func(appData string) error {
		return ws.WriteControl(websocket.PingMessage, []byte(appData), time.Now().Add(settings.WriteTimeout))
	})

	self.stateLock.Lock()
	self.state = ClientStateLive
	self.connected = true
	self.authenticated = true
	self.stateLock.Unlock()

	handleCtx, handleCancel := context.WithCancel(self.ctx)

	if 0 < settings.PingInterval {
		go func() {
			for {
				select {
				case <-handleCtx.Done():
					return
				case <-time.After(settings.PingInterval):
					self.sendPing()
				}
			}
		}()
	}

	for {
		if 0 < settings.InactivityTimeout {
			ws.SetReadDeadline(time.Now().Add(settings.InactivityTimeout))
		}
		messageType, frame, err := ws.ReadMessage()
		if err != nil {
			glog.V(2).Infof("[c]%s<- close = %s\n", self.instanceId, err)
			break
		}
		switch messageType {
		case websocket.TextMessage:
			self.dispatchFrame(frame)
		default:
			glog.V(2).Infof("[c]%s<- other = %d\n", self.instanceId, messageType)
		}
	}

	handleCancel()
	ws.Close()
	self.handleDisconnect()
	return nil
}

func (self *Client) setState(state ClientState) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.state = state
}

// handleDisconnect clears the session: connected and authenticated flags
// drop, the authenticated user reference is released, and listeners are
// told. The rest of the store is left as the session left it.
func (self *Client) handleDisconnect() {
	self.stateLock.Lock()
	self.ws = nil
	self.connected = false
	self.authenticated = false
	self.state = ClientStateDisconnected
	self.store.AuthenticatedUser = nil
	self.pending = append(self.pending, &Notification{
		Name: NotificationClientDisconnected,
	})
	self.stateLock.Unlock()

	self.flushNotifications()
}

// must be called with `stateLock`
func (self *Client) notify(notification *Notification) {
	self.pending = append(self.pending, notification)
}

func (self *Client) flushNotifications() {
	self.stateLock.Lock()
	notifications := self.pending
	self.pending = nil
	self.stateLock.Unlock()

	if len(notifications) == 0 {
		return
	}
	callbacks := self.notificationCallbacks.Get()
	for _, notification := range notifications {
		for _, callback := range callbacks {
			notification := notification
			callback := callback
			safeInvoke(func() {
				callback(notification)
			})
		}
	}
}

// SendMessage delivers text to a conversation. The message is staged under
// a correlation id until the server echoes it with its permanent ts. When
// the client is not Live the send is silently dropped; callers observe
// connection status via notifications.
func (self *Client) SendMessage(channelId string, text string) {
	wire, ok := self.stageOutbound(channelId, text)
	if !ok {
		return
	}
	self.writeFrame(wire)
}

func (self *Client) stageOutbound(channelId string, text string) ([]byte, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.state != ClientStateLive {
		return nil, false
	}
	if channelId == "" {
		return nil, false
	}

	self.nextMessageId += 1
	wireId := self.nextMessageId

	var userId string
	if self.store.AuthenticatedUser != nil {
		userId = self.store.AuthenticatedUser.Id
	}
	message := &Message{
		Type:    "message",
		Channel: channelId,
		User:    userId,
		Text:    text,
		// provisional client-side timestamp, replaced by the confirmed ts
		Ts: fmt.Sprintf("%d", time.Now().Unix()),
	}
	correlationId := strconv.FormatInt(wireId, 10)
	self.store.PendingSentMessages[correlationId] = message

	clientMessageId := NewId()
	wire, err := json.Marshal(map[string]any{
		"id":            wireId,
		"type":          "message",
		"channel":       channelId,
		"text":          escapeOutboundText(text),
		"client_msg_id": &clientMessageId,
	})
	if err != nil {
		delete(self.store.PendingSentMessages, correlationId)
		return nil, false
	}
	return wire, true
}

func (self *Client) sendPing() {
	self.stateLock.Lock()
	if self.state != ClientStateLive {
		self.stateLock.Unlock()
		return
	}
	self.nextMessageId += 1
	wireId := self.nextMessageId
	self.pingTime = time.Now()
	self.stateLock.Unlock()

	wire, err := json.Marshal(map[string]any{
		"id":   wireId,
		"type": "ping",
		"time": time.Now().Unix(),
	})
	if err != nil {
		return
	}
	self.writeFrame(wire)
}

func (self *Client) writeFrame(frame []byte) {
	self.stateLock.Lock()
	ws := self.ws
	settings := self.settings
	self.stateLock.Unlock()
	if ws == nil {
		return
	}

	self.writeLock.Lock()
	defer self.writeLock.Unlock()
	if settings != nil && 0 < settings.WriteTimeout {
		ws.SetWriteDeadline(time.Now().Add(settings.WriteTimeout))
	}
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		// a websocket write deadline error cannot be recovered; the read
		// loop observes the close and runs the disconnect path
		glog.Infof("[c]%s-> error = %s\n", self.instanceId, err)
	}
}
