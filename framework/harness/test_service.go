package harness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/laji-form/mock-contract-tests/framework"
)

// TestServiceInfo is status information returned by the page service from the initial status query.
type TestServiceInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

// TestServiceEntity represents some kind of entity that we have asked the page service to create,
// which the test harness will interact with. For the form harness, this is a page session.
type TestServiceEntity struct {
	resourceURL string
	logger      framework.Logger
}

// CommandError is returned when the page service answers a request with a non-success status.
// Body holds the raw response body, which may carry a structured description of the failure.
type CommandError struct {
	StatusCode int
	Body       []byte
}

func (e *CommandError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("page service returned HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("page service returned HTTP status %d: %s", e.StatusCode, string(e.Body))
}

func queryTestServiceInfo(url string, timeout time.Duration, output io.Writer) (TestServiceInfo, error) {
	if output == nil {
		output = io.Discard
	}
	fmt.Fprintf(output, "Connecting to page service at %s", url)

	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprintf(output, ".")
		resp, err := http.DefaultClient.Get(url)
		if err == nil {
			fmt.Fprintln(output)
			if resp.StatusCode != http.StatusOK {
				_ = resp.Body.Close()
				return TestServiceInfo{}, fmt.Errorf("page service returned status code %d", resp.StatusCode)
			}
			respData, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return TestServiceInfo{}, err
			}
			if len(respData) == 0 {
				fmt.Fprintf(output, "Status query successful, but service provided no metadata\n")
				return TestServiceInfo{}, nil
			}
			fmt.Fprintf(output, "Status query returned metadata: %s\n", string(respData))
			var info TestServiceInfo
			if err := json.Unmarshal(respData, &info); err != nil {
				return TestServiceInfo{}, fmt.Errorf("malformed status response from page service: %s", string(respData))
			}
			return info, nil
		}
		if !time.Now().Before(deadline) {
			return TestServiceInfo{}, fmt.Errorf("timed out, result of last query was: %w", err)
		}
		time.Sleep(time.Millisecond * 100)
	}
}

// StopService tells the page service that it should exit.
func (h *TestHarness) StopService() error {
	req, _ := http.NewRequest(http.MethodDelete, h.testServiceBaseURL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err == nil {
		_ = resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("service returned HTTP %d", resp.StatusCode)
		}
	}
	// It's normal for the request to return an I/O error if the service immediately quit before sending a response
	return nil
}

// NewTestServiceEntity tells the page service to create a new instance of whatever kind of entity
// it manages, based on the parameters we provide. The test harness can interact with it via the
// returned TestServiceEntity. The entity is assumed to remain active inside the page service
// until we explicitly close it.
//
// The format of entityParams is defined by the test harness; this low-level method simply calls
// json.Marshal to convert whatever it is to JSON.
func (h *TestHarness) NewTestServiceEntity(
	entityParams interface{},
	description string,
	logger framework.Logger,
) (*TestServiceEntity, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}

	data, err := json.Marshal(entityParams)
	if err != nil {
		return nil, err
	}

	logger.Printf("Creating page service entity (%s) with parameters: %s", description, string(data))
	resp, err := http.DefaultClient.Post(h.testServiceBaseURL, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &CommandError{StatusCode: resp.StatusCode, Body: body}
	}
	resourceURL := resp.Header.Get("Location")
	if resourceURL == "" {
		return nil, errors.New("page service did not return a Location header with a resource URL")
	}
	if !strings.HasPrefix(resourceURL, "http:") {
		resourceURL = h.testServiceBaseURL + resourceURL
	}

	return &TestServiceEntity{
		resourceURL: resourceURL,
		logger:      logger,
	}, nil
}

// Close tells the page service to dispose of this entity.
func (e *TestServiceEntity) Close() error {
	req, err := http.NewRequest(http.MethodDelete, e.resourceURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("DELETE request to page service returned HTTP status %d", resp.StatusCode)
	}
	return nil
}

// SendCommand sends a command with no parameters other than its name.
func (e *TestServiceEntity) SendCommand(command string, logger framework.Logger, responseOut interface{}) error {
	return e.SendCommandWithParams(map[string]string{"command": command}, logger, responseOut)
}

// SendCommandWithParams sends a command to the entity. The params are marshaled to JSON and
// should include the command name. If responseOut is not nil, the response body is decoded
// into it. A non-success status is returned as a *CommandError.
func (e *TestServiceEntity) SendCommandWithParams(params interface{}, logger framework.Logger, responseOut interface{}) error {
	if logger == nil {
		logger = e.logger
	}
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	logger.Printf("Sending command: %s", string(data))
	resp, err := http.DefaultClient.Post(e.resourceURL, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		logger.Printf("Command failed with status %d: %s", resp.StatusCode, string(body))
		return &CommandError{StatusCode: resp.StatusCode, Body: body}
	}
	if responseOut != nil && len(body) > 0 {
		logger.Printf("Command response: %s", string(body))
		if err := json.Unmarshal(body, responseOut); err != nil {
			return fmt.Errorf("malformed command response from page service: %s", string(body))
		}
	}
	return nil
}
