// Package model holds the wire-format types that cross component
// boundaries: Hub Event, Agent, Tenant, Channel Message and Journey State.
// Everything else in the system treats payloads as opaque JSON maps.
package model

import "time"

// Tenant mirrors the record owned by the external registry service.
type Tenant struct {
	ID           string            `json:"id"`
	Role         string            `json:"role,omitempty"`
	Organization string            `json:"organization,omitempty"`
	Name         string            `json:"name,omitempty"`
	Environment  string            `json:"environment,omitempty"`
	EnvVars      map[string]string `json:"envVars,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	CreatedAt    *time.Time        `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time        `json:"updatedAt,omitempty"`
}

// Capability is a single function an Agent exposes.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
}

// Agent is an external HTTP service registered with a /run endpoint.
type Agent struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Endpoint          string         `json:"endpoint"`
	DisplayName       string         `json:"displayName,omitempty"`
	Version           string         `json:"version,omitempty"`
	Owner             string         `json:"owner,omitempty"`
	Capabilities      []Capability   `json:"capabilities,omitempty"`
	SupportedChannels []string       `json:"supportedChannels,omitempty"`
	Tenants           []string       `json:"tenants,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// HubEvent is the unit of work crossing the router boundary. It is
// immutable once constructed and persisted verbatim to the replay stream.
type HubEvent struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenantId,omitempty"`
	Type          string         `json:"type"`
	Source        string         `json:"source,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Payload       map[string]any `json:"payload,omitempty"`
	SessionID     string         `json:"sessionId,omitempty"`
	TargetAgent   string         `json:"targetAgent,omitempty"`
	AgentName     string         `json:"agentName,omitempty"`
	Channel       string         `json:"channel,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ResolvedAgent implements the invariant resolvedAgent = targetAgent ?? agentName.
func (e HubEvent) ResolvedAgent() string {
	if e.TargetAgent != "" {
		return e.TargetAgent
	}
	return e.AgentName
}

// ChannelMessage is transformed 1:1 into a HubEvent with type "channel.message".
type ChannelMessage struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenantId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	AgentName string         `json:"agentName,omitempty"`
	Channel   string         `json:"channel"`
	Direction string         `json:"direction"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ToHubEvent builds the Hub Event a channel message is dispatched as.
func (m ChannelMessage) ToHubEvent() HubEvent {
	return HubEvent{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Type:      "channel.message",
		Source:    m.Channel,
		Timestamp: m.Timestamp,
		Payload:   m.Payload,
		SessionID: m.SessionID,
		AgentName: m.AgentName,
		Channel:   m.Channel,
		Metadata:  m.Metadata,
	}
}

// Approval is a single pending or resolved human-in-the-loop gate.
type Approval struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// JourneyState is the staged case workflow's working copy. It is not
// redacted; redaction is applied to copies at event emission, in the
// caller-facing rendered view, and on the intake sent to the case tool.
type JourneyState struct {
	TenantID         string         `json:"tenantId"`
	CaseID           string         `json:"caseId"`
	Intake           map[string]any `json:"intake"`
	Patient          map[string]any `json:"patient"`
	Stage            string         `json:"stage"`
	Status           string         `json:"status"`
	ClinicalSummary  string         `json:"clinicalSummary"`
	Eligibility      map[string]any `json:"eligibility"`
	Pricing          map[string]any `json:"pricing"`
	Travel           map[string]any `json:"travel"`
	Docs             map[string]any `json:"docs"`
	Approvals        []Approval     `json:"approvals"`
	Itinerary        map[string]any `json:"itinerary"`
	Aftercare        map[string]any `json:"aftercare"`
	Disclaimers      []string       `json:"disclaimers"`
	RedFlags         []string       `json:"redFlags"`
	Transcript       []string       `json:"transcript"`
	UpdatedAt        string         `json:"updatedAt"`
}

// NewJourneyState seeds a fresh case at the intake stage.
func NewJourneyState(tenantID, caseID string, patient, intake map[string]any, disclaimer string) *JourneyState {
	if patient == nil {
		patient = map[string]any{}
	}
	if intake == nil {
		intake = map[string]any{}
	}
	return &JourneyState{
		TenantID:    tenantID,
		CaseID:      caseID,
		Intake:      intake,
		Patient:     patient,
		Stage:       "intake",
		Status:      "intake",
		Eligibility: map[string]any{},
		Pricing:     map[string]any{},
		Travel:      map[string]any{},
		Docs:        map[string]any{},
		Approvals:   []Approval{},
		Itinerary:   map[string]any{},
		Aftercare:   map[string]any{},
		Disclaimers: []string{disclaimer},
		RedFlags:    []string{},
		Transcript:  []string{},
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// AddDisclaimer appends text if not already present.
func (s *JourneyState) AddDisclaimer(text string) {
	for _, d := range s.Disclaimers {
		if d == text {
			return
		}
	}
	s.Disclaimers = append(s.Disclaimers, text)
}

// Touch bumps UpdatedAt so it strictly increases across successful steps.
func (s *JourneyState) Touch() {
	s.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
}
