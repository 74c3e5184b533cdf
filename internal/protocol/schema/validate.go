package schema

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// ValidationError reports a rule that spans more than one definition.
type ValidationError struct {
	Definition string
	Reason     string
}

func (e ValidationError) Error() string {
	if e.Definition == "" {
		return fmt.Sprintf("schema: %s", e.Reason)
	}
	return fmt.Sprintf("schema: definition=%s: %s", e.Definition, e.Reason)
}

type opcodeKey struct {
	major uint8
	minor int
}

// Validate checks cross-definition invariants and links every reply to its
// request. It must run before definitions are compiled.
func Validate(defs []*Definition) error {
	log.Debug().Int("definitions", len(defs)).Msg("schema.Validate")
	byName := make(map[string]*Definition, len(defs))
	requests := make(map[opcodeKey]string)
	events := make(map[uint8]string)
	errorCodes := make(map[uint8]string)

	for _, d := range defs {
		if _, dup := byName[d.Name]; dup {
			return reject(ValidationError{Definition: d.Name, Reason: "duplicate definition"})
		}
		byName[d.Name] = d

		switch d.Role.Kind {
		case RoleRequest:
			key := opcodeKey{major: d.Role.Major, minor: -1}
			if d.Role.HasMinor {
				key.minor = int(d.Role.Minor)
			}
			if prev, dup := requests[key]; dup {
				return reject(ValidationError{Definition: d.Name, Reason: fmt.Sprintf("opcode already used by %s", prev)})
			}
			requests[key] = d.Name
		case RoleEvent:
			if prev, dup := events[d.Role.Code]; dup {
				return reject(ValidationError{Definition: d.Name, Reason: fmt.Sprintf("event code already used by %s", prev)})
			}
			events[d.Role.Code] = d.Name
		case RoleError:
			if prev, dup := errorCodes[d.Role.Code]; dup {
				return reject(ValidationError{Definition: d.Name, Reason: fmt.Sprintf("error code already used by %s", prev)})
			}
			errorCodes[d.Role.Code] = d.Name
		}
	}

	for _, d := range defs {
		switch d.Role.Kind {
		case RoleReply:
			req, ok := byName[d.Role.Request]
			if !ok || req.Role.Kind != RoleRequest {
				return reject(ValidationError{Definition: d.Name, Reason: fmt.Sprintf("reply for unknown request %q", d.Role.Request)})
			}
			if req.Role.Reply != "" && req.Role.Reply != d.Name {
				return reject(ValidationError{Definition: d.Name, Reason: fmt.Sprintf("request %s already replies with %s", req.Name, req.Role.Reply)})
			}
			req.Role.Reply = d.Name
		case RoleRequest:
			for _, name := range d.Role.Errors {
				e, ok := byName[name]
				if !ok || e.Role.Kind != RoleError {
					return reject(ValidationError{Definition: d.Name, Reason: fmt.Sprintf("error set names unknown error %q", name)})
				}
			}
		}
	}

	for _, d := range defs {
		if d.Role.Kind != RoleRequest || d.Role.Reply == "" {
			continue
		}
		rep, ok := byName[d.Role.Reply]
		if !ok || rep.Role.Kind != RoleReply || rep.Role.Request != d.Name {
			return reject(ValidationError{Definition: d.Name, Reason: fmt.Sprintf("reply %q is not declared for this request", d.Role.Reply)})
		}
	}
	log.Debug().Int("definitions", len(defs)).Msg("schema.Validate ok")
	return nil
}

func reject(err ValidationError) error {
	log.Error().Str("definition", err.Definition).Str("reason", err.Reason).Msg("schema.Validate rejected")
	return err
}
