package papi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v9/pkg/edgegrid"
	"github.com/jaescalo/property-deployer/internal/domain"
)

// PropertyClient defines the interface for interacting with the remote
// property management API. The orchestration engine is written against
// this interface; the remote system stays the source of truth.
type PropertyClient interface {
	// FindProperty resolves a property name to its ID and current
	// production version. Fails with domain.ErrPropertyNotFound or
	// domain.ErrAmbiguousName.
	FindProperty(ctx context.Context, name string) (*domain.PropertySummary, error)

	// GetLatestVersion returns the most recent version of the property
	// together with its activation status on each network.
	GetLatestVersion(ctx context.Context, propertyID string) (*domain.VersionSummary, error)

	// GetVersion returns one specific version and its per-network status.
	GetVersion(ctx context.Context, propertyID string, version int) (*domain.VersionSummary, error)

	// CreateVersion creates a new version using baseVersion as the
	// template and returns the new version number.
	CreateVersion(ctx context.Context, propertyID string, baseVersion int) (int, json.RawMessage, error)

	// UpdateRuleTree replaces the version's rule tree wholesale and sets
	// the version notes. Fails with domain.ErrVersionConflict when the
	// remote system rejects the body.
	UpdateRuleTree(ctx context.Context, propertyID string, version int, ruleTree json.RawMessage, notes string) (json.RawMessage, error)

	// CreateActivation submits an activation request for the version on
	// the given network.
	CreateActivation(ctx context.Context, propertyID string, version int, network domain.Network, notes string) (*domain.ActivationHandle, error)

	// GetActivationStatus reports the current state of an activation.
	GetActivationStatus(ctx context.Context, propertyID, activationID string) (*domain.ActivationState, error)
}

// Client talks to the Property Manager API with EdgeGrid-signed requests.
type Client struct {
	http         *http.Client
	signer       *edgegrid.Config
	baseURL      string
	accountKey   string
	notifyEmails []string
	ackWarnings  bool
}

// Ensure Client implements PropertyClient.
var _ PropertyClient = (*Client)(nil)

// Options configures the Client beyond its credentials.
type Options struct {
	// AccountKey is appended as accountSwitchKey to every request. Only
	// needed when one credential manages multiple accounts.
	AccountKey   string
	NotifyEmails []string
	AckWarnings  bool
	Timeout      time.Duration
}

// New creates a new Property Manager client using credentials from the
// given edgerc file and section.
func New(edgercPath, section string, opts Options) (*Client, error) {
	signer, err := edgegrid.New(
		edgegrid.WithFile(edgercPath),
		edgegrid.WithSection(section),
	)
	if err != nil {
		return nil, fmt.Errorf("loading edgegrid credentials: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	emails := opts.NotifyEmails
	if len(emails) == 0 {
		emails = []string{"noreply@example.com"}
	}

	return &Client{
		http:         &http.Client{Timeout: timeout},
		signer:       signer,
		baseURL:      "https://" + signer.Host,
		accountKey:   opts.AccountKey,
		notifyEmails: emails,
		ackWarnings:  opts.AckWarnings,
	}, nil
}

// FindProperty looks up a property by name.
func (c *Client) FindProperty(ctx context.Context, name string) (*domain.PropertySummary, error) {
	raw, err := c.do(ctx, http.MethodPost, "/papi/v1/search/find-by-value", searchRequest{PropertyName: name})
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Versions.Items) == 0 {
		return nil, domain.ErrPropertyNotFound
	}

	summary := &domain.PropertySummary{Name: name, Raw: raw}
	for _, item := range resp.Versions.Items {
		if summary.PropertyID == "" {
			summary.PropertyID = item.PropertyID
		} else if summary.PropertyID != item.PropertyID {
			return nil, domain.ErrAmbiguousName
		}
		if item.ProductionStatus == string(domain.StatusActive) {
			summary.ProductionVersion = item.PropertyVersion
			summary.HasProduction = true
		}
	}
	return summary, nil
}

// GetLatestVersion returns the property's most recent version.
func (c *Client) GetLatestVersion(ctx context.Context, propertyID string) (*domain.VersionSummary, error) {
	raw, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/papi/v1/properties/%s/versions/latest", url.PathEscape(propertyID)), nil)
	if err != nil {
		return nil, err
	}
	return parseVersion(raw, propertyID)
}

// GetVersion returns one specific version of the property.
func (c *Client) GetVersion(ctx context.Context, propertyID string, version int) (*domain.VersionSummary, error) {
	raw, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/papi/v1/properties/%s/versions/%d", url.PathEscape(propertyID), version), nil)
	if err != nil {
		return nil, err
	}
	return parseVersion(raw, propertyID)
}

func parseVersion(raw json.RawMessage, propertyID string) (*domain.VersionSummary, error) {
	var resp versionsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parsing versions response: %w", err)
	}
	if len(resp.Versions.Items) == 0 {
		return nil, domain.ErrNotFound
	}

	item := resp.Versions.Items[0]
	staging, err := domain.ParseActivationStatus(item.StagingStatus)
	if err != nil {
		return nil, err
	}
	production, err := domain.ParseActivationStatus(item.ProductionStatus)
	if err != nil {
		return nil, err
	}

	return &domain.VersionSummary{
		PropertyID:       propertyID,
		Version:          item.PropertyVersion,
		StagingStatus:    staging,
		ProductionStatus: production,
		Raw:              raw,
	}, nil
}

// CreateVersion creates a new version from baseVersion. The new version
// number is parsed from the returned version link.
func (c *Client) CreateVersion(ctx context.Context, propertyID string, baseVersion int) (int, json.RawMessage, error) {
	raw, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/papi/v1/properties/%s/versions", url.PathEscape(propertyID)),
		createVersionRequest{CreateFromVersion: baseVersion})
	if err != nil {
		return 0, nil, err
	}

	var resp createVersionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, nil, fmt.Errorf("parsing create version response: %w", err)
	}
	version, err := versionFromLink(resp.VersionLink)
	if err != nil {
		return 0, nil, err
	}
	return version, raw, nil
}

// UpdateRuleTree replaces the rule tree of the version and sets notes as
// the version comments.
func (c *Client) UpdateRuleTree(ctx context.Context, propertyID string, version int, ruleTree json.RawMessage, notes string) (json.RawMessage, error) {
	// The notes ride along in the rule-tree body as "comments".
	var body map[string]any
	if err := json.Unmarshal(ruleTree, &body); err != nil {
		return nil, fmt.Errorf("%w: rule tree is not a JSON object", domain.ErrInvalidInput)
	}
	body["comments"] = notes

	raw, err := c.do(ctx, http.MethodPut,
		fmt.Sprintf("/papi/v1/properties/%s/versions/%d/rules", url.PathEscape(propertyID), version), body)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// CreateActivation submits an activation request.
func (c *Client) CreateActivation(ctx context.Context, propertyID string, version int, network domain.Network, notes string) (*domain.ActivationHandle, error) {
	raw, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/papi/v1/properties/%s/activations", url.PathEscape(propertyID)),
		activationRequest{
			PropertyVersion:        version,
			Network:                string(network),
			Note:                   notes,
			NotifyEmails:           c.notifyEmails,
			AcknowledgeAllWarnings: c.ackWarnings,
		})
	if err != nil {
		return nil, err
	}

	var resp createActivationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parsing activation response: %w", err)
	}
	if resp.ActivationLink == "" {
		return nil, fmt.Errorf("activation response missing activation link")
	}

	return &domain.ActivationHandle{
		ActivationID: idFromLink(resp.ActivationLink),
		Link:         resp.ActivationLink,
		Raw:          raw,
	}, nil
}

// GetActivationStatus reports the activation's current state.
func (c *Client) GetActivationStatus(ctx context.Context, propertyID, activationID string) (*domain.ActivationState, error) {
	raw, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/papi/v1/properties/%s/activations/%s",
			url.PathEscape(propertyID), url.PathEscape(activationID)), nil)
	if err != nil {
		return nil, err
	}

	var resp activationsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parsing activation status response: %w", err)
	}
	if len(resp.Activations.Items) == 0 {
		return nil, domain.ErrNotFound
	}

	item := resp.Activations.Items[0]
	status, err := domain.ParseActivationStatus(item.Status)
	if err != nil {
		return nil, err
	}

	return &domain.ActivationState{
		ActivationID: item.ActivationID,
		Status:       status,
		Reason:       item.FatalError,
		Raw:          raw,
	}, nil
}

// do performs one signed request and returns the raw response body.
func (c *Client) do(ctx context.Context, method, apiPath string, body any) (json.RawMessage, error) {
	op := method + " " + apiPath

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	u := c.baseURL + apiPath
	if c.accountKey != "" {
		sep := "?"
		if strings.Contains(apiPath, "?") {
			sep = "&"
		}
		u += sep + "accountSwitchKey=" + url.QueryEscape(c.accountKey)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.signer != nil {
		c.signer.SignRequest(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	raw := json.RawMessage(buf.Bytes())

	switch {
	case resp.StatusCode >= http.StatusInternalServerError,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode >= http.StatusBadRequest:
		var problem apiProblem
		_ = json.Unmarshal(raw, &problem)
		if method == http.MethodPut && strings.HasSuffix(apiPath, "/rules") {
			return nil, fmt.Errorf("%w: %s", domain.ErrVersionConflict, problemDetail(&problem, resp.StatusCode))
		}
		return nil, fmt.Errorf("%s: %s", op, problemDetail(&problem, resp.StatusCode))
	}

	return raw, nil
}

func problemDetail(p *apiProblem, statusCode int) string {
	switch {
	case p.Detail != "":
		return p.Detail
	case p.Title != "":
		return p.Title
	default:
		return fmt.Sprintf("status %d", statusCode)
	}
}

// versionFromLink extracts the version number from a version link such as
// "/papi/v1/properties/prp_123456/versions/400?contractId=ctr_1".
func versionFromLink(link string) (int, error) {
	u, err := url.Parse(link)
	if err != nil {
		return 0, fmt.Errorf("parsing version link %q: %w", link, err)
	}
	version, err := strconv.Atoi(path.Base(u.Path))
	if err != nil {
		return 0, fmt.Errorf("version link %q has no version number", link)
	}
	return version, nil
}

// idFromLink extracts the trailing identifier from a link such as
// "/papi/v1/properties/prp_123456/activations/atv_12339328".
func idFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	return path.Base(u.Path)
}
