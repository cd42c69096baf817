package hub

import (
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"
)

// Commander executes commands received from clients.
type Commander interface {
	Execute(cmd ClientMessage) error
}

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient creates a new Client attached to the hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// WritePump sends messages from the send channel to the WebSocket connection.
func (c *Client) WritePump() {
	defer func() {
		c.conn.Close()
	}()

	for msg := range c.send {
		err := c.conn.WriteMessage(websocket.TextMessage, msg)
		if err != nil {
			break
		}
	}
}

// ReadPumpWithHandler reads commands from the WebSocket, executes them and
// answers each with a result or error message.
func (c *Client) ReadPumpWithHandler(cmd Commander) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			log.Printf("Error parsing client message: %v", err)
			continue
		}

		err = cmd.Execute(clientMsg)
		if err != nil {
			log.Printf("Command %s %q failed: %v", clientMsg.Type, clientMsg.Value, err)
		}
		data, merr := json.Marshal(NewResultMessage(clientMsg.Type, err))
		if merr != nil {
			log.Printf("Error marshaling result: %v", merr)
			continue
		}
		c.hub.Send(c, data)
	}
}
