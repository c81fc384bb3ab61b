package libraries

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// WebSocketMessageType names every message exchanged with the canvas UI
type WebSocketMessageType string

const (
	WebSocketMessageTypePing        WebSocketMessageType = "ping"
	WebSocketMessageTypePong        WebSocketMessageType = "pong"
	WebSocketMessageTypeError       WebSocketMessageType = "error"
	WebSocketMessageTypeSubscribe   WebSocketMessageType = "subscribe"
	WebSocketMessageTypeSubscribed  WebSocketMessageType = "subscribed"
	WebSocketMessageTypeShapes      WebSocketMessageType = "shapes_updated"
	WebSocketMessageTypeErrorNotice WebSocketMessageType = "error_notice"
	WebSocketMessageTypeSaveStatus  WebSocketMessageType = "save_status"
)

type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	once sync.Once
}

type subscription struct {
	client    *Client
	projectID string
}

type envelope struct {
	projectID string
	payload   []byte
}

// Hub fans project events out to the websocket clients subscribed to that project
type Hub struct {
	Clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client

	subscribe chan subscription
	broadcast chan envelope
	// projects maps a project id to the ids of its subscribed clients
	projects map[string]map[string]bool
	// watching is the reverse of projects
	watching map[string]string
	done     chan struct{}
	stopOnce sync.Once
}

type WebSocketMessage struct {
	Type WebSocketMessageType `json:"type"`
	Data interface{}          `json:"data,omitempty"`
}

type SubscribePayload struct {
	ProjectId string `json:"project_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		broadcast:  make(chan envelope, 256),
		projects:   make(map[string]map[string]bool),
		watching:   make(map[string]string),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for _, client := range h.Clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.Clients[client.ID] = client
		case client := <-h.Unregister:
			h.drop(client)
		case sub := <-h.subscribe:
			if _, ok := h.Clients[sub.client.ID]; !ok {
				continue
			}
			h.unwatch(sub.client.ID)
			if h.projects[sub.projectID] == nil {
				h.projects[sub.projectID] = make(map[string]bool)
			}
			h.projects[sub.projectID][sub.client.ID] = true
			h.watching[sub.client.ID] = sub.projectID
		case msg := <-h.broadcast:
			for id := range h.projects[msg.projectID] {
				client := h.Clients[id]
				select {
				case client.Send <- msg.payload:
				default:
					// a client that cannot keep up is disconnected
					log.Println("websocket client too slow, dropping:", id)
					h.drop(client)
				}
			}
		}
	}
}

// Stop ends Run and closes every client send channel
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) drop(client *Client) {
	if _, exists := h.Clients[client.ID]; !exists {
		return
	}
	delete(h.Clients, client.ID)
	h.unwatch(client.ID)
	client.once.Do(func() {
		close(client.Send)
	})
}

func (h *Hub) unwatch(clientID string) {
	projectID, ok := h.watching[clientID]
	if !ok {
		return
	}
	delete(h.watching, clientID)
	delete(h.projects[projectID], clientID)
	if len(h.projects[projectID]) == 0 {
		delete(h.projects, projectID)
	}
}

// Subscribe points client at one project's events, replacing any earlier subscription
func (h *Hub) Subscribe(client *Client, projectID string) {
	select {
	case h.subscribe <- subscription{client: client, projectID: projectID}:
	case <-h.done:
	}
}

// Publish sends one event to every client watching projectID. It never blocks
// the caller on the network; a full queue drops the event.
func (h *Hub) Publish(projectID string, msgType WebSocketMessageType, data interface{}) {
	payload, err := json.Marshal(WebSocketMessage{Type: msgType, Data: data})
	if err != nil {
		log.Println("failed to marshal websocket event:", err)
		return
	}
	select {
	case h.broadcast <- envelope{projectID: projectID, payload: payload}:
	default:
		log.Println("websocket broadcast queue full, dropping event:", msgType)
	}
}

func (h *Hub) SendMessage(client *Client, message []byte) {
	defer func() {
		// Send is closed once the hub has dropped the client
		if recover() != nil {
			log.Println("send to closed websocket client:", client.ID)
		}
	}()
	client.Send <- message
}

// SendErrorMessage sends a standardized error message to a client
func SendErrorMessage(hub *Hub, client *Client, errorMsg string) {
	SendEvent(hub, client, WebSocketMessageTypeError, &ErrorPayload{Message: errorMsg})
}

// SendEvent sends one typed message to a single client
func SendEvent(hub *Hub, client *Client, msgType WebSocketMessageType, data interface{}) {
	resp := WebSocketMessage{Type: msgType, Data: data}
	respBytes, err := json.Marshal(resp)
	if err != nil {
		log.Println("failed to marshal websocket response:", err)
		return
	}
	hub.SendMessage(client, respBytes)
}

// parseWebSocketMessage parses incoming websocket message and returns the message structure
func parseWebSocketMessage(msg []byte) (*WebSocketMessage, error) {
	var rawMessage struct {
		Type WebSocketMessageType `json:"type"`
		Data json.RawMessage      `json:"data,omitempty"`
	}
	if err := json.Unmarshal(msg, &rawMessage); err != nil {
		return nil, err
	}

	message := &WebSocketMessage{
		Type: rawMessage.Type,
	}
	if len(rawMessage.Data) > 0 && rawMessage.Type == WebSocketMessageTypeSubscribe {
		var payload SubscribePayload
		if err := json.Unmarshal(rawMessage.Data, &payload); err != nil {
			return nil, err
		}
		message.Data = &payload
	}
	return message, nil
}

// SubscriptionHook lets the caller send the current project state to a client
// right after it subscribes
type SubscriptionHook func(client *Client, projectID string)

func WebSocketHandler(hub *Hub, onSubscribe SubscriptionHook) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			ID:   uuid.NewString(),
			Conn: conn,
			Send: make(chan []byte, 256),
		}

		select {
		case hub.Register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		// Write loop
		go func() {
			defer conn.Close()
			for msg := range client.Send {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Println("write error:", err)
					return
				}
			}
		}()

		// Read loop
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}

			message, err := parseWebSocketMessage(msg)
			if err != nil {
				log.Println("failed to parse JSON:", err)
				SendErrorMessage(hub, client, "Invalid JSON format")
				continue
			}

			switch message.Type {
			case WebSocketMessageTypePing:
				SendEvent(hub, client, WebSocketMessageTypePong, nil)
			case WebSocketMessageTypeSubscribe:
				payload, ok := message.Data.(*SubscribePayload)
				if !ok || payload.ProjectId == "" {
					SendErrorMessage(hub, client, "Project ID is required")
					continue
				}
				hub.Subscribe(client, payload.ProjectId)
				SendEvent(hub, client, WebSocketMessageTypeSubscribed, payload)
				if onSubscribe != nil {
					onSubscribe(client, payload.ProjectId)
				}
			default:
				SendErrorMessage(hub, client, "Type is invalid or not provided")
			}
		}

		select {
		case hub.Unregister <- client:
		case <-hub.done:
		}
	})
}
