package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SAS Tenancy API",
        "description": "Tenant and term scoping gateway for the academic administration platform",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Authentication and token lifecycle"},
        {"name": "Organizations", "description": "Platform-level organization directory"},
        {"name": "Terms", "description": "Term registry and promotion"},
        {"name": "Students", "description": "Student records"},
        {"name": "Classes", "description": "Classes and teaching assignments"},
        {"name": "Enrollments", "description": "Term-scoped class membership"},
        {"name": "Grades", "description": "Term-scoped grade records"},
        {"name": "Fees", "description": "Fee structures, assignments, payments"},
        {"name": "Announcements", "description": "Organization notices"},
        {"name": "Consistency", "description": "Cross-tenant consistency reporting"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/organizations": {
            "get": {
                "tags": ["Organizations"],
                "summary": "List organizations",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "verified", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Organizations"],
                "summary": "Register an organization",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOrganizationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/organizations/bulk-status": {
            "post": {
                "tags": ["Organizations"],
                "summary": "Apply status changes to many organizations",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkOrganizationStatusRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/admin/consistency/report": {
            "get": {
                "tags": ["Consistency"],
                "summary": "Run a consistency scan",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/consistency/export": {
            "get": {
                "tags": ["Consistency"],
                "summary": "Export a consistency report",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/terms": {
            "get": {
                "tags": ["Terms"],
                "summary": "List terms of the active organization",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "X-Organization-ID", "in": "header", "type": "string"},
                    {"name": "session", "in": "query", "type": "string"},
                    {"name": "current", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Terms"],
                "summary": "Create a term",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTermRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/terms/current": {
            "get": {
                "tags": ["Terms"],
                "summary": "Get the current term",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "No current term"}
                }
            }
        },
        "/terms/promote": {
            "post": {
                "tags": ["Terms"],
                "summary": "Promote a term to current",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PromoteTermRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent promotion detected"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Register a student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student into a class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEnrollmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Cross-tenant reference"}
                }
            }
        },
        "/fees/assignments/bulk": {
            "post": {
                "tags": ["Fees"],
                "summary": "Assign a fee structure to many students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkAssignFeesRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Cross-tenant reference, batch rolled back"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "CreateOrganizationRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"}
            },
            "required": ["code", "name"]
        },
        "BulkOrganizationStatusRequest": {
            "type": "object",
            "properties": {
                "updates": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "organization_id": {"type": "string"},
                            "active": {"type": "boolean"},
                            "verified": {"type": "boolean"}
                        }
                    }
                }
            },
            "required": ["updates"]
        },
        "CreateTermRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "session_label": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"}
            },
            "required": ["name", "session_label", "start_date", "end_date"]
        },
        "PromoteTermRequest": {
            "type": "object",
            "properties": {
                "term_id": {"type": "string"},
                "expected_current_term_id": {"type": "string"}
            },
            "required": ["term_id"]
        },
        "CreateStudentRequest": {
            "type": "object",
            "properties": {
                "admission_no": {"type": "string"},
                "full_name": {"type": "string"},
                "birth_date": {"type": "string"}
            },
            "required": ["admission_no", "full_name"]
        },
        "CreateEnrollmentRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "class_id": {"type": "string"}
            },
            "required": ["student_id", "class_id"]
        },
        "BulkAssignFeesRequest": {
            "type": "object",
            "properties": {
                "fee_structure_id": {"type": "string"},
                "student_ids": {"type": "array", "items": {"type": "string"}},
                "due_date": {"type": "string"}
            },
            "required": ["fee_structure_id", "student_ids"]
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
