package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TemplateResponse — template из API.
type TemplateResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	EntityType  string               `json:"entity_type"`
	IsActive    bool                 `json:"is_active"`
	Steps       []StepResponse       `json:"steps,omitempty"`
	Transitions []TransitionResponse `json:"transitions,omitempty"`
	CreatedAt   string               `json:"created_at"`
}

// StepResponse — шаг из API.
type StepResponse struct {
	ID           string   `json:"id"`
	TemplateID   string   `json:"template_id"`
	Name         string   `json:"name"`
	StepOrder    int      `json:"step_order"`
	RequiredRole string   `json:"required_role"`
	Actions      []string `json:"actions"`
	AutoAdvance  bool     `json:"auto_advance"`
	TimeoutHours *int     `json:"timeout_hours,omitempty"`
}

// TransitionResponse — переход из API.
type TransitionResponse struct {
	ID         string `json:"id"`
	TemplateID string `json:"template_id"`
	FromStepID string `json:"from_step_id"`
	ToStepID   string `json:"to_step_id"`
	Condition  string `json:"condition"`
	Priority   int    `json:"priority"`
}

// InstanceResponse — instance из API.
type InstanceResponse struct {
	ID            string `json:"id"`
	TemplateID    string `json:"template_id"`
	EntityType    string `json:"entity_type"`
	EntityID      string `json:"entity_id"`
	Status        string `json:"status"`
	CurrentStepID string `json:"current_step_id"`
	Version       int    `json:"version"`
	InitiatedBy   string `json:"initiated_by"`
	StartedAt     string `json:"started_at"`
	StepEnteredAt string `json:"step_entered_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

// ExecutionResponse — запись истории из API.
type ExecutionResponse struct {
	ID         string         `json:"id"`
	InstanceID string         `json:"instance_id"`
	StepID     string         `json:"step_id"`
	ActorID    string         `json:"actor_id"`
	ActorRole  string         `json:"actor_role"`
	Action     string         `json:"action"`
	Comments   string         `json:"comments,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// ValidationResponse — результат проверки template из API.
type ValidationResponse struct {
	IsValid bool `json:"is_valid"`
	Issues  []struct {
		Code         string `json:"code"`
		StepID       string `json:"step_id,omitempty"`
		TransitionID string `json:"transition_id,omitempty"`
		Message      string `json:"message"`
	} `json:"issues"`
}

// MetricsResponse — сводка по шаблону из API.
type MetricsResponse struct {
	TotalInstances    int     `json:"total_instances"`
	CompletionRate    float64 `json:"completion_rate"`
	AvgCompletionTime int64   `json:"avg_completion_time"`
}

// BottlenecksResponse — отчёт об узких местах из API.
type BottlenecksResponse struct {
	SlowSteps []struct {
		StepID       string `json:"step_id"`
		AvgDwellTime int64  `json:"avg_dwell_time"`
		Visits       int    `json:"visits"`
	} `json:"slow_steps"`
	MedianDwell int64 `json:"median_dwell"`
}

// --- Request types ---

// CreateTemplateRequest — создание template.
type CreateTemplateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	EntityType  string `json:"entity_type"`
}

// AddStepRequest — добавление шага.
type AddStepRequest struct {
	Name         string   `json:"name"`
	StepOrder    int      `json:"step_order"`
	RequiredRole string   `json:"required_role"`
	Actions      []string `json:"actions"`
	AutoAdvance  bool     `json:"auto_advance,omitempty"`
	TimeoutHours *int     `json:"timeout_hours,omitempty"`
}

// AddTransitionRequest — добавление перехода.
type AddTransitionRequest struct {
	FromStepID string `json:"from_step_id"`
	ToStepID   string `json:"to_step_id"`
	Condition  string `json:"condition"`
	Priority   int    `json:"priority,omitempty"`
}

// StartInstanceRequest — запуск instance.
type StartInstanceRequest struct {
	TemplateID  string `json:"template_id"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	InitiatedBy string `json:"initiated_by"`
}

// AdvanceRequest — продвижение instance.
type AdvanceRequest struct {
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Action    string `json:"action"`
	Comments  string `json:"comments,omitempty"`
}

// CancelRequest — отмена instance.
type CancelRequest struct {
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Comments  string `json:"comments,omitempty"`
}

// ListInstancesOpts — параметры фильтрации instances.
type ListInstancesOpts struct {
	TemplateID string
	EntityType string
	EntityID   string
	Status     string
	Limit      int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Vizir API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Templates ---

// ListTemplates возвращает все templates.
func (c *Client) ListTemplates() ([]TemplateResponse, error) {
	var templates []TemplateResponse
	err := c.list("/api/v1/templates", nil, &templates)
	return templates, err
}

// CreateTemplate создаёт новый template.
func (c *Client) CreateTemplate(req CreateTemplateRequest) (*TemplateResponse, error) {
	var tpl TemplateResponse
	err := c.post("/api/v1/templates", req, &tpl)
	return &tpl, err
}

// GetTemplate возвращает template с шагами и переходами.
func (c *Client) GetTemplate(id string) (*TemplateResponse, error) {
	var tpl TemplateResponse
	err := c.get("/api/v1/templates/"+id, &tpl)
	return &tpl, err
}

// DeleteTemplate удаляет template.
func (c *Client) DeleteTemplate(id string) error {
	return c.delete("/api/v1/templates/" + id)
}

// SetTemplateActive включает или выключает template.
func (c *Client) SetTemplateActive(id string, active bool) (*TemplateResponse, error) {
	var tpl TemplateResponse
	body := map[string]bool{"is_active": active}
	err := c.put("/api/v1/templates/"+id+"/active", body, &tpl)
	return &tpl, err
}

// AddStep добавляет шаг к template.
func (c *Client) AddStep(templateID string, req AddStepRequest) (*StepResponse, error) {
	var step StepResponse
	err := c.post("/api/v1/templates/"+templateID+"/steps", req, &step)
	return &step, err
}

// AddTransition добавляет переход к template.
func (c *Client) AddTransition(templateID string, req AddTransitionRequest) (*TransitionResponse, error) {
	var tr TransitionResponse
	err := c.post("/api/v1/templates/"+templateID+"/transitions", req, &tr)
	return &tr, err
}

// ValidateTemplate выполняет структурную проверку template.
func (c *Client) ValidateTemplate(id string) (*ValidationResponse, error) {
	var result ValidationResponse
	err := c.post("/api/v1/templates/"+id+"/validate", nil, &result)
	return &result, err
}

// --- Instances ---

// ListInstances возвращает instances с фильтрацией.
func (c *Client) ListInstances(opts ListInstancesOpts) ([]InstanceResponse, error) {
	params := url.Values{}
	if opts.TemplateID != "" {
		params.Set("template_id", opts.TemplateID)
	}
	if opts.EntityType != "" {
		params.Set("entity_type", opts.EntityType)
	}
	if opts.EntityID != "" {
		params.Set("entity_id", opts.EntityID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var instances []InstanceResponse
	err := c.list("/api/v1/instances", params, &instances)
	return instances, err
}

// StartInstance запускает новый instance.
func (c *Client) StartInstance(req StartInstanceRequest) (*InstanceResponse, error) {
	var inst InstanceResponse
	err := c.post("/api/v1/instances", req, &inst)
	return &inst, err
}

// GetInstance возвращает instance по ID.
func (c *Client) GetInstance(id string) (*InstanceResponse, error) {
	var inst InstanceResponse
	err := c.get("/api/v1/instances/"+id, &inst)
	return &inst, err
}

// AdvanceInstance применяет действие к instance.
func (c *Client) AdvanceInstance(id string, req AdvanceRequest) (*InstanceResponse, error) {
	var inst InstanceResponse
	err := c.post("/api/v1/instances/"+id+"/advance", req, &inst)
	return &inst, err
}

// CancelInstance отменяет instance.
func (c *Client) CancelInstance(id string, req CancelRequest) (*InstanceResponse, error) {
	var inst InstanceResponse
	err := c.post("/api/v1/instances/"+id+"/cancel", req, &inst)
	return &inst, err
}

// InstanceHistory возвращает историю instance.
func (c *Client) InstanceHistory(id string) ([]ExecutionResponse, error) {
	var executions []ExecutionResponse
	err := c.list("/api/v1/instances/"+id+"/history", nil, &executions)
	return executions, err
}

// --- Analytics ---

// TemplateMetrics возвращает сводку по шаблону.
func (c *Client) TemplateMetrics(id, from, to string) (*MetricsResponse, error) {
	params := url.Values{}
	if from != "" {
		params.Set("from", from)
	}
	if to != "" {
		params.Set("to", to)
	}

	path := "/api/v1/templates/" + id + "/metrics"
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	var metrics MetricsResponse
	err := c.get(path, &metrics)
	return &metrics, err
}

// TemplateBottlenecks возвращает отчёт об узких местах.
func (c *Client) TemplateBottlenecks(id string) (*BottlenecksResponse, error) {
	var report BottlenecksResponse
	err := c.get("/api/v1/templates/"+id+"/bottlenecks", &report)
	return &report, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
