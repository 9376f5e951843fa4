package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const _FETCH_TIMEOUT = 30 * time.Second

// LoadDataset reads the record array from a local file or an http(s) URL.
func LoadDataset(ctx context.Context, source string) ([]Record, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, ErrNoDataSource
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = fetchDataset(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", source, err)
	}
	return decodeDataset(data)
}

func decodeDataset(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrUnknownDataset
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return records, nil
}

func fetchDataset(ctx context.Context, url string) ([]byte, error) {
	resp, err := resty.New().
		SetTimeout(_FETCH_TIMEOUT).
		SetHeader("Accept", "application/json").
		R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %s", resp.Status())
	}
	return resp.Body(), nil
}
