package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "FlexTime API",
        "description": "Scheduling service for school flexible-time periods",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh, password management"},
        {"name": "FlexDates", "description": "Flex calendar administration"},
        {"name": "Sessions", "description": "Teacher session offerings and rosters"},
        {"name": "Registrations", "description": "Student selection workflow"},
        {"name": "Notifications", "description": "Student inbox"},
        {"name": "Users", "description": "Account administration"},
        {"name": "Admin", "description": "Dashboard statistics"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Token pair issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate refresh token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Token expired or revoked"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/auth/password": {
            "put": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "responses": {
                    "204": {"description": "Password changed"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "Authenticated user info"}
                }
            }
        },
        "/flex-dates": {
            "get": {
                "tags": ["FlexDates"],
                "summary": "List flex dates",
                "responses": {"200": {"description": "Flex dates with counts"}}
            },
            "post": {
                "tags": ["FlexDates"],
                "summary": "Create flex date",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Date already declared"}
                }
            }
        },
        "/flex-dates/upcoming": {
            "get": {
                "tags": ["FlexDates"],
                "summary": "Selection window view",
                "responses": {"200": {"description": "Upcoming dates with my registration"}}
            }
        },
        "/flex-dates/{id}": {
            "get": {
                "tags": ["FlexDates"],
                "summary": "Get flex date",
                "responses": {"200": {"description": "Flex date"}}
            },
            "put": {
                "tags": ["FlexDates"],
                "summary": "Update flex date",
                "responses": {"200": {"description": "Updated"}}
            },
            "delete": {
                "tags": ["FlexDates"],
                "summary": "Delete flex date",
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Sessions scheduled on date"}
                }
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Available sessions for a date",
                "responses": {"200": {"description": "Sessions with enrollment"}}
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Create session",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Teacher already offers a session"}
                }
            }
        },
        "/sessions/mine": {
            "get": {
                "tags": ["Sessions"],
                "summary": "My sessions",
                "responses": {"200": {"description": "Teacher's upcoming sessions"}}
            }
        },
        "/sessions/templates": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List session templates",
                "responses": {"200": {"description": "Saved templates"}}
            }
        },
        "/sessions/templates/{id}": {
            "delete": {
                "tags": ["Sessions"],
                "summary": "Delete session template",
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get session",
                "responses": {"200": {"description": "Session detail"}}
            },
            "put": {
                "tags": ["Sessions"],
                "summary": "Update session",
                "responses": {"200": {"description": "Updated"}}
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Cancel session",
                "responses": {"204": {"description": "Cancelled, students notified"}}
            }
        },
        "/sessions/{id}/roster": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Session roster",
                "responses": {"200": {"description": "Registered students"}}
            }
        },
        "/sessions/{id}/roster/export": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Export roster as CSV or PDF",
                "responses": {"200": {"description": "File download"}}
            }
        },
        "/registrations": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Select a session",
                "responses": {
                    "201": {"description": "Selection saved"},
                    "409": {"description": "Session full or selection locked"}
                }
            }
        },
        "/registrations/me": {
            "get": {
                "tags": ["Registrations"],
                "summary": "My registrations",
                "responses": {"200": {"description": "Registrations from today forward"}}
            }
        },
        "/registrations/students/{id}": {
            "get": {
                "tags": ["Registrations"],
                "summary": "Registrations for a student",
                "responses": {"200": {"description": "Registrations from today forward"}}
            }
        },
        "/registrations/lock": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Lock a student into a session",
                "responses": {
                    "200": {"description": "Student locked"},
                    "409": {"description": "Locked by another teacher"}
                }
            }
        },
        "/registrations/{id}/unlock": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Release a lock",
                "responses": {"200": {"description": "Lock released"}}
            }
        },
        "/registrations/{id}/remove": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Remove a student from a session",
                "responses": {"204": {"description": "Removed, student notified"}}
            }
        },
        "/registrations/{id}": {
            "delete": {
                "tags": ["Registrations"],
                "summary": "Cancel a selection",
                "responses": {"204": {"description": "Cancelled"}}
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications",
                "responses": {"200": {"description": "Notifications with unread count"}}
            }
        },
        "/notifications/{id}/read": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark notification read",
                "responses": {"204": {"description": "Marked read"}}
            }
        },
        "/notifications/read-all": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark all notifications read",
                "responses": {"200": {"description": "Count marked read"}}
            }
        },
        "/admin/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "responses": {"200": {"description": "Paginated users"}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create user",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Email in use"}
                }
            }
        },
        "/admin/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get user",
                "responses": {"200": {"description": "User"}}
            },
            "put": {
                "tags": ["Users"],
                "summary": "Update user",
                "responses": {"200": {"description": "Updated"}}
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Delete user",
                "responses": {"204": {"description": "Deleted with dependents"}}
            }
        },
        "/admin/stats": {
            "get": {
                "tags": ["Admin"],
                "summary": "Admin overview",
                "responses": {"200": {"description": "Dashboard counters"}}
            }
        }
    },
    "definitions": {
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
                "status": {"type": "integer"}
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
