package proto

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

// Schema describes every message on the websocket as a oneOf of the client
// and server message shapes.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}

	messages := []struct {
		value       any
		title       string
		description string
	}{
		{StartGame{}, TypeStartGame, "Client request creating a match."},
		{ClientStateUpdate{}, "client " + TypeStateUpdate, "Client report folded into the authoritative state."},
		{Subscribe{}, TypeSubscribe, "Client request joining a match broadcast set."},
		{Unsubscribe{}, TypeUnsubscribe, "Client request leaving every broadcast set."},
		{GameStarted{}, TypeGameStarted, "Server reply to start_game."},
		{StateUpdate{}, "server " + TypeStateUpdate, "Server broadcast after every turn."},
		{Error{}, TypeError, "Server reply to a rejected message."},
	}

	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Puppet Arena WebSocket Protocol",
		Description: "JSON messages exchanged on /ws.",
	}
	for _, m := range messages {
		schema := reflector.ReflectFromType(reflect.TypeOf(m.value))
		schema.Version = ""
		schema.Title = m.title
		schema.Description = m.description
		root.OneOf = append(root.OneOf, schema)
	}
	return root
}
