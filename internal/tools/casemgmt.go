package tools

import "context"

// CaseManagementTool starts and annotates cases in the backend case
// management system, grounded on orchestrator-svc/app/tools/d365.py.
type CaseManagementTool struct {
	base *BaseTool
}

func NewCaseManagementTool(baseURL string, timeout int) *CaseManagementTool {
	return &CaseManagementTool{base: NewBaseTool("case-management", baseURL, secondsOrDefault(timeout))}
}

func (c *CaseManagementTool) StartCase(ctx context.Context, tenantID, caseID string, patient map[string]any) (map[string]any, error) {
	return c.base.Request(ctx, "POST", "/cases", map[string]any{
		"tenantId": tenantID,
		"caseId":   caseID,
		"patient":  patient,
	})
}

func (c *CaseManagementTool) AddNote(ctx context.Context, tenantID, caseID, note string) (map[string]any, error) {
	return c.base.Request(ctx, "POST", "/cases/"+caseID+"/notes", map[string]any{
		"tenantId": tenantID,
		"note":     note,
	})
}
