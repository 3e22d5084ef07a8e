package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AskInward/Voice-Calc/internal/calc"
)

// DefaultEndpoint is the Gemini Live streaming endpoint.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// ToolName is the single declared operation the service may invoke.
const ToolName = "update_calculator"

// systemInstruction fixes the command-phrase grammar the recognizer maps to
// operations and keeps spoken confirmations short.
const systemInstruction = `You are the voice interface of a calculator. ` +
	`The user speaks arithmetic commands such as "add fifty", "subtract twelve", ` +
	`"multiply by two", "divide by four" or "reset". For every command, call the ` +
	ToolName + ` function with the operation and its numeric value (use 0 for reset). ` +
	`Then confirm out loud in five words or fewer. Do not answer anything else.`

const (
	inputMimeType = "audio/pcm;rate=16000"

	handshakeTimeout = 10 * time.Second
	setupTimeout     = 15 * time.Second
)

// Callbacks is the client's outward surface. All callbacks are invoked from
// the read loop, in transport delivery order.
type Callbacks struct {
	// OnOperation fires once per tool invocation, before it is acknowledged.
	OnOperation func(op calc.Operation)
	// OnTranscript fires on each partial input transcription.
	OnTranscript func(text string)
	// OnAudio receives decoded synthesized PCM (24 kHz mono s16le).
	OnAudio func(pcm []byte)
	// OnInterrupted signals that queued playback should be flushed.
	OnInterrupted func()
	// OnClosed fires once when the connection dies. err is nil on clean close.
	OnClosed func(err error)
}

// Client speaks the Gemini Live protocol over one WebSocket connection. A
// Client is single-use: once closed it cannot reconnect.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	cb       Callbacks

	conn     *websocket.Conn
	audioOut chan []byte
	stopCh   chan struct{}

	mu        sync.RWMutex
	connected bool

	writeMu sync.Mutex

	closedOnce sync.Once
}

// NewClient creates a client for the given model. endpoint may be empty to
// use DefaultEndpoint.
func NewClient(apiKey, model, endpoint string, cb Callbacks) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		cb:       cb,
		audioOut: make(chan []byte, 64),
		stopCh:   make(chan struct{}),
	}
}

// toolDeclaration is the static schema for the one callable operation.
func toolDeclaration() tool {
	return tool{FunctionDeclarations: []functionDeclaration{{
		Name:        ToolName,
		Description: "Apply an arithmetic operation to the running calculator total.",
		Parameters: &schema{
			Type: "OBJECT",
			Properties: map[string]*schema{
				"operation": {
					Type: "STRING",
					Enum: []string{"ADD", "SUBTRACT", "MULTIPLY", "DIVIDE", "RESET"},
				},
				"value": {
					Type:        "NUMBER",
					Description: "Operand for the operation; 0 for RESET.",
				},
			},
			Required: []string{"operation", "value"},
		},
	}}}
}

// Connect dials the service, sends the setup frame carrying the tool
// declaration and behavior instruction, and waits for setupComplete.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	if c.apiKey == "" {
		return fmt.Errorf("gemini api key is empty")
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.endpoint+"?key="+c.apiKey, nil)
	if err != nil {
		if resp != nil {
			log.Printf("gemini live: connect failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("connect to gemini live: %w", err)
	}

	setup := setupMessage{Setup: setupPayload{
		Model:                   "models/" + c.model,
		GenerationConfig:        &generationConfig{ResponseModalities: []string{"AUDIO"}},
		SystemInstruction:       &content{Parts: []part{{Text: systemInstruction}}},
		Tools:                   []tool{toolDeclaration()},
		InputAudioTranscription: &struct{}{},
	}}
	if err := conn.WriteJSON(setup); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send setup: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(setupTimeout))
	var first serverMessage
	if err := conn.ReadJSON(&first); err != nil {
		_ = conn.Close()
		return fmt.Errorf("read setup ack: %w", err)
	}
	if first.SetupComplete == nil {
		_ = conn.Close()
		return fmt.Errorf("gemini live: expected setupComplete, got something else")
	}
	_ = conn.SetReadDeadline(time.Time{})

	c.conn = conn
	c.connected = true

	go c.handleMessages()
	go c.sendAudioData()

	log.Printf("gemini live: session open (model=%s)", c.model)
	return nil
}

// SendAudio queues one captured PCM frame for transmission. Frames are
// dropped, not blocked on, when the outbound buffer is full.
func (c *Client) SendAudio(pcm []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return fmt.Errorf("gemini live: not connected")
	}
	select {
	case c.audioOut <- pcm:
		return nil
	default:
		log.Println("gemini live: outbound audio buffer full, dropping frame")
		return nil
	}
}

// Close tears the connection down. Safe to call multiple times and before
// Connect; in-flight writes after Close are dropped silently.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closedOnce.Do(func() { close(c.stopCh) })
	if !c.connected {
		return nil
	}
	c.connected = false
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
		c.conn = nil
	}
	log.Println("gemini live: session closed")
	return nil
}

func (c *Client) closing() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// handleMessages processes inbound frames in delivery order.
func (c *Client) handleMessages() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closing() {
				return
			}
			// Transport ended while open: surface once, then tear down.
			clean := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			if !clean {
				log.Printf("gemini live: read error: %v", err)
			}
			_ = c.Close()
			if c.cb.OnClosed != nil {
				if clean {
					c.cb.OnClosed(nil)
				} else {
					c.cb.OnClosed(err)
				}
			}
			return
		}
		c.processMessage(data)
	}
}

func (c *Client) processMessage(data []byte) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("gemini live: unmarshal server frame: %v", err)
		return
	}
	switch {
	case msg.ToolCall != nil:
		for _, fc := range msg.ToolCall.FunctionCalls {
			c.dispatchToolCall(fc)
		}
	case msg.ServerContent != nil:
		c.processServerContent(msg.ServerContent)
	case msg.GoAway != nil:
		log.Printf("gemini live: goAway received (time left %s)", msg.GoAway.TimeLeft)
	case msg.SetupComplete != nil:
		// Already consumed during Connect; duplicates are harmless.
	default:
		log.Println("gemini live: unknown server frame")
	}
}

// dispatchToolCall invokes the operation callback and then acknowledges the
// invocation. Every invocation is acknowledged exactly once, malformed or
// not; numeric validation belongs to the operation callback.
func (c *Client) dispatchToolCall(fc functionCall) {
	op := operationFromCall(fc)
	if c.cb.OnOperation != nil {
		c.cb.OnOperation(op)
	}
	ack := toolResponseMessage{ToolResponse: toolResponse{
		FunctionResponses: []functionResponse{{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: map[string]any{"output": "ok"},
		}},
	}}
	if err := c.sendJSON(ack); err != nil {
		log.Printf("gemini live: send tool ack: %v", err)
	}
}

// operationFromCall maps a function call to an Operation. Unexpected names
// and non-numeric operands map to OpUnknown rather than failing the session.
func operationFromCall(fc functionCall) calc.Operation {
	if fc.Name != ToolName {
		return calc.Operation{Op: calc.OpUnknown}
	}
	name, ok := fc.Args["operation"].(string)
	if !ok {
		return calc.Operation{Op: calc.OpUnknown}
	}
	op := calc.ParseOp(name)
	value, ok := fc.Args["value"].(float64)
	if !ok {
		if op == calc.OpReset {
			return calc.Operation{Op: calc.OpReset}
		}
		return calc.Operation{Op: calc.OpUnknown}
	}
	return calc.Operation{Op: op, Value: value}
}

func (c *Client) processServerContent(sc *serverContent) {
	if sc.Interrupted && c.cb.OnInterrupted != nil {
		c.cb.OnInterrupted()
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" && c.cb.OnTranscript != nil {
		c.cb.OnTranscript(sc.InputTranscription.Text)
	}
	if sc.ModelTurn == nil {
		return
	}
	for _, p := range sc.ModelTurn.Parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			// A bad fragment is dropped; the session continues.
			log.Printf("gemini live: decode audio fragment: %v", err)
			continue
		}
		if c.cb.OnAudio != nil {
			c.cb.OnAudio(pcm)
		}
	}
}

// sendAudioData transmits queued capture frames in capture order.
func (c *Client) sendAudioData() {
	for {
		select {
		case <-c.stopCh:
			return
		case pcm := <-c.audioOut:
			frame := realtimeInputMessage{RealtimeInput: realtimeInput{
				Audio: &blob{
					MimeType: inputMimeType,
					Data:     base64.StdEncoding.EncodeToString(pcm),
				},
			}}
			if err := c.sendJSON(frame); err != nil {
				if !c.closing() {
					log.Printf("gemini live: send audio frame: %v", err)
				}
				return
			}
		}
	}
}

// sendJSON serializes writes; the read loop (tool acks) and the audio writer
// both send on the same connection.
func (c *Client) sendJSON(v any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("gemini live: connection is closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}
