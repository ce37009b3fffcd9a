package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Community Events API",
        "description": "Registration, waitlist and prerequisite engine for activity-group events.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Events", "description": "Event lifecycle and capacity"},
        {"name": "Registrations", "description": "Registration and waitlist flow"},
        {"name": "Prerequisites", "description": "Prerequisite edges and evaluation"},
        {"name": "Sessions", "description": "Event sessions and attendance"},
        {"name": "Rosters", "description": "Organizer rosters and exports"}
    ],
    "paths": {
        "/events": {
            "get": {
                "tags": ["Events"],
                "summary": "List active events",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Events"],
                "summary": "Create event",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEventRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Organizer role required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}": {
            "get": {
                "tags": ["Events"],
                "summary": "Get event",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Event not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Events"],
                "summary": "Update event",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateEventRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Events"],
                "summary": "Delete event with its registrations, waitlist, prerequisites and sessions",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Deletion summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Event not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/archive": {
            "post": {
                "tags": ["Events"],
                "summary": "Soft delete event",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Archived"}}
            }
        },
        "/events/{id}/capacity": {
            "get": {
                "tags": ["Events"],
                "summary": "Capacity snapshot",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/register": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Register or join the waitlist",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "201": {"description": "Registered or waitlisted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already registered or waitlisted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Prerequisites unmet or registration closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/registration": {
            "delete": {
                "tags": ["Registrations"],
                "summary": "Cancel registration and promote the waitlist head",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/waitlist": {
            "delete": {
                "tags": ["Registrations"],
                "summary": "Leave the waitlist",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/waitlist/notify": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Offer a spot to the next waitlisted user",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "No waitlist entries", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/waitlist/confirm": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Accept a waitlist offer",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "201": {"description": "Registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "No notification found or event full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/registrations/{userId}/complete": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Mark a registration completed",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "userId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"204": {"description": "Completed"}}
            }
        },
        "/events/{id}/prerequisites": {
            "get": {
                "tags": ["Prerequisites"],
                "summary": "List prerequisites of an event",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/prerequisites/check": {
            "get": {
                "tags": ["Prerequisites"],
                "summary": "Evaluate prerequisites for the caller",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/dependents": {
            "get": {
                "tags": ["Prerequisites"],
                "summary": "List events that require this event",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Record a session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events/{id}/roster": {
            "get": {
                "tags": ["Rosters"],
                "summary": "Roster as JSON, CSV or PDF",
                "produces": ["application/json", "text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/prerequisites": {
            "post": {
                "tags": ["Prerequisites"],
                "summary": "Create prerequisite edge",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePrerequisiteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate or self-referencing edge", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/prerequisites/{id}": {
            "delete": {
                "tags": ["Prerequisites"],
                "summary": "Remove prerequisite edge",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Removed"},
                    "404": {"description": "Prerequisite not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateEventRequest": {
            "type": "object",
            "required": ["activity_group_name", "event_date"],
            "properties": {
                "activity_group_name": {"type": "string"},
                "event_date": {"type": "string", "format": "date-time"},
                "max_participants": {"type": "integer"},
                "cost": {"type": "number"},
                "registration_required": {"type": "boolean"},
                "registration_deadline": {"type": "string", "format": "date-time"},
                "location_id": {"type": "string"}
            }
        },
        "UpdateEventRequest": {
            "type": "object",
            "properties": {
                "activity_group_name": {"type": "string"},
                "event_date": {"type": "string", "format": "date-time"},
                "max_participants": {"type": "integer"},
                "clear_max_participants": {"type": "boolean"},
                "cost": {"type": "number"},
                "registration_required": {"type": "boolean"},
                "registration_deadline": {"type": "string", "format": "date-time"},
                "clear_registration_deadline": {"type": "boolean"},
                "location_id": {"type": "string"},
                "clear_location": {"type": "boolean"}
            }
        },
        "CreatePrerequisiteRequest": {
            "type": "object",
            "required": ["event_id", "prerequisite_event_id"],
            "properties": {
                "event_id": {"type": "string"},
                "prerequisite_event_id": {"type": "string"},
                "minimum_performance": {"type": "number"},
                "qualification_period": {"type": "integer"},
                "is_waiver_allowed": {"type": "boolean"}
            }
        },
        "CreateSessionRequest": {
            "type": "object",
            "required": ["session_date"],
            "properties": {
                "session_date": {"type": "string", "format": "date-time"},
                "attendance": {"type": "number"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
