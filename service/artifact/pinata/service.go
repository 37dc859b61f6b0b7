// Package pinata publishes artifacts to IPFS through the Pinata pinning
// API and returns gateway URLs as locators.
package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/babelmesh/lingua/service/artifact"
)

const (
	defaultEndpoint = "https://api.pinata.cloud/pinning/pinFileToIPFS"
	defaultGateway  = "https://gateway.pinata.cloud/ipfs"
)

// Config represents Pinata connection settings.
type Config struct {
	// JWT authenticates against the pinning API.
	JWT string `yaml:"jwt" json:"jwt"`

	// Endpoint overrides the pinning API URL, mainly for tests.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Gateway is the base URL locators are built from.
	Gateway string `yaml:"gateway" json:"gateway"`
}

// Service publishes artifacts to IPFS via Pinata.
type Service struct {
	config Config
	client *http.Client
}

// New creates a Pinata publisher.
func New(config Config, client *http.Client) *Service {
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Gateway == "" {
		config.Gateway = defaultGateway
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Service{config: config, client: client}
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Publish pins the data and returns its gateway URL.
func (s *Service) Publish(ctx context.Context, name string, data []byte, _ string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", artifact.ErrPublish, err)
	}
	if _, err = part.Write(data); err != nil {
		return "", fmt.Errorf("%w: %v", artifact.ErrPublish, err)
	}
	if err = writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", artifact.ErrPublish, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", artifact.ErrPublish, err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	if s.config.JWT != "" {
		request.Header.Set("Authorization", "Bearer "+s.config.JWT)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("%w: %v", artifact.ErrPublish, err)
	}
	defer response.Body.Close()
	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", artifact.ErrPublish, err)
	}
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %v: %s", artifact.ErrPublish, response.StatusCode, payload)
	}
	var pinned pinResponse
	if err = json.Unmarshal(payload, &pinned); err != nil {
		return "", fmt.Errorf("%w: %v", artifact.ErrPublish, err)
	}
	if pinned.IpfsHash == "" {
		return "", fmt.Errorf("%w: response carried no hash", artifact.ErrPublish)
	}
	return fmt.Sprintf("%s/%s", s.config.Gateway, pinned.IpfsHash), nil
}
