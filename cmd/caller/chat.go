package main

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"frontdesk/internal/models"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var chatNumber string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Call the front desk and chat with the agent",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatNumber, "number", "n", "", "caller mobile number")
	chatCmd.MarkFlagRequired("number")
}

// roomURL picks the WebSocket endpoint the server advertised, falling back to
// one derived from --server
func roomURL(advertised, token string) (string, error) {
	base := advertised
	if base == "" {
		u, err := url.Parse(serverURL)
		if err != nil {
			return "", err
		}
		u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
		u.Path = "/ws/room"
		base = u.String()
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func runChat(cmd *cobra.Command, args []string) error {
	var start models.StartSessionResponse
	if err := doJSON(http.MethodPost, "/api/session/start", models.StartSessionRequest{CallerID: chatNumber}, &start); err != nil {
		return fmt.Errorf("could not start call: %w", err)
	}

	wsURL, err := roomURL(start.WSURL, start.Token)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Origin", strings.TrimRight(serverURL, "/"))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("could not join room %s: %w", start.RoomID, err)
	}
	defer conn.Close()

	fmt.Printf("📞 Connected to %s as %s. Type a question, or /quit to hang up.\n", start.RoomID, start.CallerID)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg models.RoomServerMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			printFrame(msg)
		}
	}()

	input := bufio.NewScanner(os.Stdin)
	for input.Scan() {
		text := strings.TrimSpace(input.Text())
		if text == "" {
			continue
		}
		if text == "/quit" {
			break
		}
		if err := conn.WriteJSON(models.RoomClientMessage{Type: "data", Payload: text}); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	<-closed
	fmt.Println("👋 Call ended")
	return nil
}

func printFrame(msg models.RoomServerMessage) {
	switch msg.Type {
	case "data":
		fmt.Printf("%s: %s\n", msg.From, msg.Payload)
	case "participant_joined":
		fmt.Printf("… %s joined\n", msg.Identity)
	case "participant_left":
		fmt.Printf("… %s left\n", msg.Identity)
	case "error":
		fmt.Printf("⚠️  %s: %s\n", msg.ErrorCode, msg.ErrorMessage)
	}
}
