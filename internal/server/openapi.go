package server

import (
	"net/http"

	"github.com/swaggo/swag"
)

// openAPIInfo follows the layout swag init generates so the document can be
// regenerated from openapi_annotations.go.
var openAPIInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "rtcore API",
	Description:      "Appointments, chat history and presence for the NeuroPath real-time core.",
	InfoInstanceName: "rtcore",
	SwaggerTemplate:  openAPITemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(openAPIInfo.InstanceName(), openAPIInfo)
}

func handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(openAPIInfo.InstanceName())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}

const openAPITemplate = `{
  "schemes": {{ marshal .Schemes }},
  "swagger": "2.0",
  "info": {
    "title": "{{.Title}}",
    "description": "{{escape .Description}}",
    "version": "{{.Version}}"
  },
  "host": "{{.Host}}",
  "basePath": "{{.BasePath}}",
  "securityDefinitions": {
    "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"},
    "AdminBasic": {"type": "basic"}
  },
  "paths": {
    "/api/appointments": {
      "get": {
        "tags": ["appointments"], "summary": "List your appointments",
        "security": [{"Bearer": []}],
        "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Appointment"}}}}
      },
      "post": {
        "tags": ["appointments"], "summary": "Book an appointment (patients only)",
        "security": [{"Bearer": []}],
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/BookRequest"}}],
        "responses": {
          "201": {"description": "Created", "schema": {"$ref": "#/definitions/Appointment"}},
          "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/Error"}},
          "403": {"description": "Not a patient", "schema": {"$ref": "#/definitions/Error"}}
        }
      }
    },
    "/api/appointments/{id}": {
      "get": {
        "tags": ["appointments"], "summary": "Get one appointment",
        "security": [{"Bearer": []}],
        "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/Appointment"}},
          "403": {"description": "Not a participant", "schema": {"$ref": "#/definitions/Error"}},
          "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Error"}}
        }
      }
    },
    "/api/appointments/{id}/respond": {
      "post": {
        "tags": ["appointments"], "summary": "Accept or reject a pending appointment",
        "security": [{"Bearer": []}],
        "parameters": [
          {"in": "path", "name": "id", "type": "string", "required": true},
          {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RespondRequest"}}
        ],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/Appointment"}},
          "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/Error"}}
        }
      }
    },
    "/api/appointments/{id}/cancel": {
      "post": {
        "tags": ["appointments"], "summary": "Cancel a confirmed appointment",
        "security": [{"Bearer": []}],
        "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Appointment"}}}
      }
    },
    "/api/appointments/{id}/complete": {
      "post": {
        "tags": ["appointments"], "summary": "Mark a confirmed appointment completed",
        "security": [{"Bearer": []}],
        "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Appointment"}}}
      }
    },
    "/api/appointments/{id}/messages": {
      "get": {
        "tags": ["chat"], "summary": "Chat history, oldest first",
        "security": [{"Bearer": []}],
        "parameters": [
          {"in": "path", "name": "id", "type": "string", "required": true},
          {"in": "query", "name": "limit", "type": "integer"}
        ],
        "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/ChatMessage"}}}}
      },
      "post": {
        "tags": ["chat"], "summary": "Send a chat message",
        "security": [{"Bearer": []}],
        "parameters": [
          {"in": "path", "name": "id", "type": "string", "required": true},
          {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/MessageRequest"}}
        ],
        "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ChatMessage"}}}
      }
    },
    "/api/presence/{userID}": {
      "get": {
        "tags": ["presence"], "summary": "Online state of a user",
        "security": [{"Bearer": []}],
        "parameters": [{"in": "path", "name": "userID", "type": "string", "required": true}],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Presence"}}}
      }
    },
    "/api/ice-servers": {
      "get": {
        "tags": ["calls"], "summary": "ICE servers for RTCPeerConnection",
        "security": [{"Bearer": []}],
        "responses": {"200": {"description": "OK"}}
      }
    },
    "/api/admin/connections": {
      "get": {"tags": ["admin"], "summary": "Live connections", "security": [{"AdminBasic": []}], "responses": {"200": {"description": "OK"}}}
    },
    "/api/admin/calls": {
      "get": {"tags": ["admin"], "summary": "Live and recent call sessions", "security": [{"AdminBasic": []}], "responses": {"200": {"description": "OK"}}}
    },
    "/api/admin/logs": {
      "get": {"tags": ["admin"], "summary": "Recent log lines", "security": [{"AdminBasic": []}], "responses": {"200": {"description": "OK"}}}
    }
  },
  "definitions": {
    "Appointment": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "patientId": {"type": "string"},
        "neurologistId": {"type": "string"},
        "date": {"type": "string", "example": "2025-03-14"},
        "time": {"type": "string", "example": "14:30"},
        "type": {"type": "string"},
        "status": {"type": "string", "enum": ["pending", "confirmed", "rejected", "cancelled", "completed"]},
        "createdAt": {"type": "string", "format": "date-time"},
        "updatedAt": {"type": "string", "format": "date-time"}
      }
    },
    "ChatMessage": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "appointmentId": {"type": "string"},
        "senderId": {"type": "string"},
        "content": {"type": "string"},
        "createdAt": {"type": "string", "format": "date-time"}
      }
    },
    "Presence": {
      "type": "object",
      "properties": {
        "userId": {"type": "string"},
        "online": {"type": "boolean"},
        "lastSeen": {"type": "integer", "description": "unix millis"},
        "offlineSince": {"type": "integer", "description": "unix millis"}
      }
    },
    "BookRequest": {
      "type": "object",
      "required": ["neurologistId", "date", "time"],
      "properties": {
        "neurologistId": {"type": "string"},
        "date": {"type": "string"},
        "time": {"type": "string"},
        "type": {"type": "string"}
      }
    },
    "RespondRequest": {"type": "object", "properties": {"accept": {"type": "boolean"}}},
    "MessageRequest": {"type": "object", "required": ["content"], "properties": {"content": {"type": "string"}}},
    "Error": {
      "type": "object",
      "properties": {
        "code": {"type": "string"},
        "message": {"type": "string"},
        "retryable": {"type": "boolean"}
      }
    }
  }
}`
