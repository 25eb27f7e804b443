package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"echorank.dev/attest/archive"
	"echorank.dev/attest/attest"
	"echorank.dev/attest/model"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error     *model.CodedError `json:"error"`
	RequestID string            `json:"request_id,omitempty"`
}

// AttestJSONRequest is the JSON alternative to a multipart upload.
type AttestJSONRequest struct {
	ContentBase64 string          `json:"content_base64"`
	Result        json.RawMessage `json:"result"`
}

// AttestResponse pairs the normalized result with its attestation.
type AttestResponse struct {
	Result      model.AnalysisResult `json:"result"`
	Attestation model.Attestation    `json:"attestation"`
}

// RecordResponse is an archived attestation and the CID it is stored under.
type RecordResponse struct {
	CID         string               `json:"cid"`
	Result      model.AnalysisResult `json:"result"`
	Attestation model.Attestation    `json:"attestation"`
}

// HealthResponse reports which components are wired.
type HealthResponse struct {
	Status     string          `json:"status"`
	Components map[string]bool `json:"components"`
	Timestamp  int64           `json:"timestamp"`
}

func (h *handler) fail(c *gin.Context, status int, code model.ErrorCode, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     model.NewError(code, msg),
		RequestID: RequestID(c),
	})
}

func (h *handler) failErr(c *gin.Context, err error) {
	_ = c.Error(err)
	h.fail(c, statusOf(err), attest.ModelCode(err), err.Error())
}

func statusOf(err error) int {
	if attest.Code(err) == attest.CodeRegistryFull {
		return http.StatusTooManyRequests
	}
	switch attest.KindOf(err) {
	case attest.KindValidation, attest.KindMalformed:
		return http.StatusBadRequest
	case attest.KindConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
		Components: map[string]bool{
			"signer":  h.attestor != nil,
			"archive": h.archive != nil,
		},
		Timestamp: h.now().Unix(),
	})
}

func (h *handler) publicKey(c *gin.Context) {
	if h.attestor == nil {
		h.fail(c, http.StatusServiceUnavailable, model.ErrUnavailable, "signer not configured")
		return
	}
	c.JSON(http.StatusOK, h.attestor.PublicKeyInfo())
}

func (h *handler) attest(c *gin.Context) {
	if h.attestor == nil {
		h.fail(c, http.StatusServiceUnavailable, model.ErrUnavailable, "signer not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	var (
		content []byte
		result  model.AnalysisResult
		err     error
	)
	if c.ContentType() == gin.MIMEJSON {
		content, result, err = readAttestJSON(c.Request.Body)
	} else {
		content, result, err = readAttestForm(c)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, model.ErrInvalidRequest, "request body too large")
			return
		}
		code := model.ErrInvalidRequest
		if errors.Is(err, model.ErrInvalidResult) {
			code = model.ErrValidation
		}
		h.fail(c, http.StatusBadRequest, code, err.Error())
		return
	}
	if len(content) == 0 {
		h.fail(c, http.StatusBadRequest, model.ErrInvalidRequest, "empty audio content")
		return
	}

	att, err := h.attestor.Attest(c.Request.Context(), content, result)
	if err != nil {
		h.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, AttestResponse{Result: result, Attestation: att})
}

func readAttestJSON(r io.Reader) ([]byte, model.AnalysisResult, error) {
	var req AttestJSONRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, model.AnalysisResult{}, err
	}
	content, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		return nil, model.AnalysisResult{}, errors.New("content_base64 is not valid base64")
	}
	if len(req.Result) == 0 {
		return nil, model.AnalysisResult{}, errors.New("missing result")
	}
	result, err := parseResult(req.Result)
	if err != nil {
		return nil, model.AnalysisResult{}, err
	}
	return content, result, nil
}

func readAttestForm(c *gin.Context) ([]byte, model.AnalysisResult, error) {
	fh, err := c.FormFile("audio")
	if err != nil {
		return nil, model.AnalysisResult{}, fmt.Errorf("missing audio file: %w", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, model.AnalysisResult{}, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, model.AnalysisResult{}, err
	}
	raw := c.PostForm("result")
	if raw == "" {
		return nil, model.AnalysisResult{}, errors.New("missing result field")
	}
	result, err := parseResult([]byte(raw))
	if err != nil {
		return nil, model.AnalysisResult{}, err
	}
	return content, result, nil
}

func parseResult(raw []byte) (model.AnalysisResult, error) {
	var result model.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		if !errors.Is(err, model.ErrInvalidResult) {
			err = fmt.Errorf("%w: %v", model.ErrInvalidResult, err)
		}
		return model.AnalysisResult{}, err
	}
	return result, nil
}

// verify answers 200 for any decodable body. Malformed fields surface as
// valid=false with an error kind.
func (h *handler) verify(c *gin.Context) {
	if h.attestor == nil {
		h.fail(c, http.StatusServiceUnavailable, model.ErrUnavailable, "signer not configured")
		return
	}
	var att model.Attestation
	if err := c.ShouldBindJSON(&att); err != nil {
		h.fail(c, http.StatusBadRequest, model.ErrInvalidRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, attest.VerifyResult(h.attestor.VerifyAttestation(c.Request.Context(), att)))
}

func (h *handler) verifyAggregate(c *gin.Context) {
	if h.attestor == nil {
		h.fail(c, http.StatusServiceUnavailable, model.ErrUnavailable, "signer not configured")
		return
	}
	var req model.AggregateVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, model.ErrInvalidRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, attest.VerifyResult(h.attestor.VerifyAggregate(c.Request.Context(), req)))
}

func (h *handler) registerKey(c *gin.Context) {
	if h.attestor == nil {
		h.fail(c, http.StatusServiceUnavailable, model.ErrUnavailable, "signer not configured")
		return
	}
	var reg model.KeyRegistration
	if err := c.ShouldBindJSON(&reg); err != nil {
		h.fail(c, http.StatusBadRequest, model.ErrInvalidRequest, err.Error())
		return
	}
	pk, err := h.attestor.RegisterKey(c.Request.Context(), reg)
	if err != nil {
		h.failErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"public_key": pk.Hex(), "registered": true})
}

func (h *handler) getAttestation(c *gin.Context) {
	rec, id, err := h.archive.Lookup(c.Request.Context(), c.Param("message_hash"))
	if err != nil {
		if archive.IsNotFound(err) {
			h.fail(c, http.StatusNotFound, model.ErrNotFound, "attestation not archived")
			return
		}
		_ = c.Error(err)
		h.fail(c, http.StatusInternalServerError, model.ErrInternal, err.Error())
		return
	}
	c.JSON(http.StatusOK, RecordResponse{CID: id.String(), Result: rec.Result, Attestation: rec.Attestation})
}
