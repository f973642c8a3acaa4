package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/config"
)

const (
	azureKeyHeader  = "Ocp-Apim-Subscription-Key"
	azureStatusDone = "succeeded"
	azureStatusFail = "failed"
)

// Azure runs Document Intelligence prebuilt models over the REST API:
// submit the document, then poll the Operation-Location until it settles.
type Azure struct {
	endpoint   string
	key        string
	model      string
	apiVersion string
	interval   time.Duration
	client     *http.Client
}

// NewAzure creates an Azure Document Intelligence analyzer.
func NewAzure(cfg config.AzureConfig, client *http.Client) *Azure {
	interval := time.Duration(cfg.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Azure{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		key:        cfg.Key,
		model:      cfg.Model,
		apiVersion: cfg.APIVersion,
		interval:   interval,
		client:     client,
	}
}

func (a *Azure) Name() string { return config.ProviderAzure }

type azureOperation struct {
	Status        string              `json:"status"`
	AnalyzeResult *azureAnalyzeResult `json:"analyzeResult"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type azureAnalyzeResult struct {
	Content       string          `json:"content"`
	Pages         []azurePage     `json:"pages"`
	KeyValuePairs []azureKeyValue `json:"keyValuePairs"`
	Tables        []azureTable    `json:"tables"`
}

type azureSpan struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

type azureRegion struct {
	PageNumber int `json:"pageNumber"`
}

type azurePage struct {
	PageNumber int         `json:"pageNumber"`
	Spans      []azureSpan `json:"spans"`
}

type azureElement struct {
	Content         string        `json:"content"`
	BoundingRegions []azureRegion `json:"boundingRegions"`
}

type azureKeyValue struct {
	Key   *azureElement `json:"key"`
	Value *azureElement `json:"value"`
}

type azureTable struct {
	BoundingRegions []azureRegion `json:"boundingRegions"`
	Cells           []struct {
		RowIndex    int    `json:"rowIndex"`
		ColumnIndex int    `json:"columnIndex"`
		Content     string `json:"content"`
	} `json:"cells"`
}

// Analyze submits pdf and waits for the analysis to finish.
func (a *Azure) Analyze(ctx context.Context, pdf []byte) (*Result, error) {
	opURL, err := a.submit(ctx, pdf)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Every(a.interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "ocr: azure poll")
		}
		op, err := a.poll(ctx, opURL)
		if err != nil {
			return nil, err
		}
		switch op.Status {
		case azureStatusDone:
			if op.AnalyzeResult == nil {
				return nil, eris.New("ocr: azure returned no analyze result")
			}
			return a.convert(op.AnalyzeResult), nil
		case azureStatusFail:
			msg := "unknown error"
			if op.Error != nil {
				msg = op.Error.Code + ": " + op.Error.Message
			}
			return nil, eris.Errorf("ocr: azure analysis failed: %s", msg)
		default:
			zap.L().Debug("azure analysis pending", zap.String("status", op.Status))
		}
	}
}

func (a *Azure) submit(ctx context.Context, pdf []byte) (string, error) {
	q := url.Values{}
	q.Set("api-version", a.apiVersion)
	q.Set("stringIndexType", "unicodeCodePoint")
	u := a.endpoint + "/formrecognizer/documentModels/" + url.PathEscape(a.model) + ":analyze?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(pdf))
	if err != nil {
		return "", eris.Wrap(err, "ocr: create azure request")
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set(azureKeyHeader, a.key)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ocr: azure API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", eris.Errorf("ocr: azure API returned %d: %s", resp.StatusCode, string(body))
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", eris.New("ocr: azure response missing Operation-Location")
	}
	return opURL, nil
}

func (a *Azure) poll(ctx context.Context, opURL string) (*azureOperation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create azure poll request")
	}
	req.Header.Set(azureKeyHeader, a.key)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: azure poll")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: read azure response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("ocr: azure poll returned %d: %s", resp.StatusCode, string(body))
	}

	var op azureOperation
	if err := json.Unmarshal(body, &op); err != nil {
		return nil, eris.Wrap(err, "ocr: unmarshal azure response")
	}
	return &op, nil
}

func (a *Azure) convert(r *azureAnalyzeResult) *Result {
	res := &Result{Provider: a.Name(), Text: r.Content}

	content := []rune(r.Content)
	for _, p := range r.Pages {
		var sb strings.Builder
		for _, s := range p.Spans {
			start, end := s.Offset, s.Offset+s.Length
			if start < 0 || end > len(content) || start > end {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(string(content[start:end]))
		}
		res.Pages = append(res.Pages, sb.String())
	}

	for _, kv := range r.KeyValuePairs {
		var key, value string
		page := 1
		if kv.Key != nil {
			key = kv.Key.Content
		}
		if kv.Value != nil {
			value = kv.Value.Content
			if len(kv.Value.BoundingRegions) > 0 {
				page = kv.Value.BoundingRegions[0].PageNumber
			}
		}
		if key == "" && value == "" {
			continue
		}
		res.KV = append(res.KV, audit.KVPair{Key: key, Value: value, Page: page})
	}

	for _, t := range r.Tables {
		tbl := audit.Table{Page: 1}
		if len(t.BoundingRegions) > 0 {
			tbl.Page = t.BoundingRegions[0].PageNumber
		}
		for _, c := range t.Cells {
			tbl.Cells = append(tbl.Cells, audit.TableCell{Row: c.RowIndex, Column: c.ColumnIndex, Content: c.Content})
		}
		res.Tables = append(res.Tables, tbl)
	}

	return res
}
