// handlers_template.go - Review template and rules handlers
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/techspec-reviewer/backend/internal/extract"
	"github.com/techspec-reviewer/backend/internal/models"
	"github.com/techspec-reviewer/backend/internal/review"
	"github.com/techspec-reviewer/backend/internal/storage"
)

// TemplateHandlerImpl implements the TemplateHandler interface
type TemplateHandlerImpl struct {
	reviews     ReviewManager
	savePath    string
	maxFileSize int64
}

// NewTemplateHandler creates a template handler. An uploaded template is
// also written to savePath when it is set, so it survives a restart.
func NewTemplateHandler(reviews ReviewManager, savePath string, maxFileSize int64) TemplateHandler {
	return &TemplateHandlerImpl{
		reviews:     reviews,
		savePath:    savePath,
		maxFileSize: maxFileSize,
	}
}

// HandleGetHeadings returns the headings sections are matched against
func (h *TemplateHandlerImpl) HandleGetHeadings(c echo.Context) error {
	headings := h.reviews.Headings()
	if headings == nil {
		headings = []models.TemplateHeading{}
	}
	return c.JSON(http.StatusOK, headings)
}

// HandleUploadTemplate replaces the review template with an uploaded DOCX
func (h *TemplateHandlerImpl) HandleUploadTemplate(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	if err := storage.ValidateUpload(file.Filename, file.Size, []string{".docx"}, h.maxFileSize); err != nil {
		return domainError(err, "invalid upload")
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return NewInternalError("failed to read uploaded file", err)
	}

	doc, err := extract.ParseTemplate(data)
	if err != nil {
		return NewBadRequestError("failed to parse template", err)
	}

	headings := extract.TemplateHeadings(doc)
	if len(headings) == 0 {
		return NewBadRequestError("template has no heading paragraphs", nil)
	}

	h.reviews.SetTemplate(headings, extract.TemplateParagraphs(doc))
	fmt.Printf("[Template] Loaded %s with %d headings\n", file.Filename, len(headings))

	if h.savePath != "" {
		if err := os.WriteFile(h.savePath, data, 0644); err != nil {
			fmt.Printf("[Template] WARNING: failed to persist template: %v\n", err)
		}
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"name":     file.Filename,
		"headings": headings,
	})
}

// RulesHandlerImpl implements the RulesHandler interface
type RulesHandlerImpl struct {
	reviews  ReviewManager
	savePath string
}

// NewRulesHandler creates a rules handler. Updated rules are written to
// savePath as YAML when it is set.
func NewRulesHandler(reviews ReviewManager, savePath string) RulesHandler {
	return &RulesHandlerImpl{
		reviews:  reviews,
		savePath: savePath,
	}
}

// HandleGetRules returns the current rules as JSON, or YAML with ?format=yaml
func (h *RulesHandlerImpl) HandleGetRules(c echo.Context) error {
	rules := h.reviews.Rules()
	if rules == nil {
		rules = &models.ReviewRules{DefaultRules: models.DefaultSectionRules, Sections: []models.SectionRule{}}
	}

	if wantsYAML(c.QueryParam("format"), c.Request().Header.Get(echo.HeaderAccept)) {
		data, err := review.MarshalRules(rules)
		if err != nil {
			return NewInternalError("failed to encode rules", err)
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}

	return c.JSON(http.StatusOK, rules)
}

// HandleUpdateRules replaces the rules from a YAML or JSON body
func (h *RulesHandlerImpl) HandleUpdateRules(c echo.Context) error {
	var (
		rules *models.ReviewRules
		err   error
	)

	if wantsYAML("", c.Request().Header.Get(echo.HeaderContentType)) {
		rules, err = review.ParseRules(c.Request().Body)
		if err != nil {
			return NewBadRequestError("invalid YAML rules", err)
		}
	} else {
		rules = &models.ReviewRules{}
		if err := json.NewDecoder(c.Request().Body).Decode(rules); err != nil {
			return NewBadRequestError("invalid JSON body", err)
		}
		if err := review.ValidateRules(rules); err != nil {
			return NewBadRequestError("invalid rules", err)
		}
	}

	h.reviews.SetRules(rules)
	fmt.Printf("[Rules] Updated: %d sections, %d mandatory\n", len(rules.Sections), len(rules.Mandatory()))

	if h.savePath != "" {
		if err := review.SaveRules(h.savePath, rules); err != nil {
			fmt.Printf("[Rules] WARNING: failed to persist rules: %v\n", err)
		}
	}

	return c.JSON(http.StatusOK, rules)
}

func wantsYAML(format, mediaType string) bool {
	if strings.EqualFold(format, "yaml") || strings.EqualFold(format, "yml") {
		return true
	}
	return strings.Contains(strings.ToLower(mediaType), "yaml")
}
