package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/passlink/credmine"
)

// Message types accepted on the run command's input stream.
const (
	messageCapture  = "capture"
	messageAutofill = "autofill"
	messageCloseTab = "close_tab"
)

const messageSchemaURL = "https://passlink.dev/credmine/message.schema.json"

const messageSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"enum": ["capture", "autofill", "close_tab"]},
    "id": {"type": "string"},
    "tab": {"type": "string"},
    "title": {"type": "string"},
    "url": {"type": "string"},
    "hidden": {"type": "boolean"},
    "user": {"$ref": "#/$defs/field"},
    "password": {"$ref": "#/$defs/field"},
    "ids": {"type": "array", "items": {"type": "string"}}
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "capture"}}},
      "then": {"required": ["password"]}
    },
    {
      "if": {"properties": {"type": {"enum": ["autofill", "close_tab"]}}},
      "then": {"required": ["tab"]}
    }
  ],
  "$defs": {
    "field": {
      "type": "object",
      "required": ["value"],
      "properties": {
        "value": {"type": "string"},
        "selector": {"type": ["string", "null"]}
      }
    }
  }
}`

// message is one line of the run input: a captured login, the credentials
// autofilled into a tab, or a tab that went away.
type message struct {
	Type string `json:"type"`
	credmine.Capture
	IDs []string `json:"ids,omitempty"`
}

type messageDecoder struct {
	schema *jsonschema.Schema
}

func newMessageDecoder() (*messageDecoder, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(messageSchema))
	if err != nil {
		return nil, fmt.Errorf("parse message schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(messageSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("load message schema: %w", err)
	}
	sch, err := c.Compile(messageSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile message schema: %w", err)
	}
	return &messageDecoder{schema: sch}, nil
}

// Decode validates line against the message schema and decodes it.
func (d *messageDecoder) Decode(line []byte) (*message, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(line))
	if err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if err := d.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	var m message
	if err := sonic.Unmarshal(line, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &m, nil
}
