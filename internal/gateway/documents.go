package gateway

import (
	"errors"
	"net/http"
	"strings"

	"ShareDesk/internal/model"
	"ShareDesk/internal/remote"
)

type downloadLink struct {
	SignedURL string `json:"signedUrl"`
	FileName  string `json:"fileName"`
	ExpiresIn int    `json:"expiresIn"`
}

// parseCompanyID reads the companyId path variable. It becomes a storage path
// segment, so separators and dot segments are rejected.
func parseCompanyID(r *http.Request) (string, error) {
	id := strings.TrimSpace(pathVar(r, "companyId"))
	if id == "" {
		return "", badRequest("Company id is required", nil)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") || id == "." {
		return "", badRequest("Invalid company id", nil)
	}
	return id, nil
}

// handleDocuments lists the statement files uploaded for a company.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) error {
	companyID, err := parseCompanyID(r)
	if err != nil {
		return err
	}
	index, err := s.data.ListDocuments(r.Context(), companyID)
	if err != nil {
		s.metrics.RemoteError("list_documents")
		return newError(http.StatusBadGateway, "Failed to load financial documents", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"companyId": companyID,
		"documents": index,
	})
	return nil
}

// handleDownload signs the newest file of one statement type.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) error {
	companyID, err := parseCompanyID(r)
	if err != nil {
		return err
	}
	statementType := pathVar(r, "statementType")
	if !model.IsStatementType(statementType) {
		return badRequest("Invalid statement type", map[string]any{"allowed": model.StatementTypes})
	}

	files, err := s.data.ListStatementFiles(r.Context(), companyID, statementType)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		s.metrics.RemoteError("list_statement_files")
		return newError(http.StatusBadGateway, "Failed to load financial documents", err)
	}
	if len(files) == 0 {
		return notFound("File not available yet")
	}

	file := files[0]
	signed, err := s.data.SignDocument(r.Context(), file.Path, remote.SignedURLTTL)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return notFound("File not available yet")
		}
		s.metrics.RemoteError("sign_document")
		return newError(http.StatusInternalServerError, "Failed to generate download link", err)
	}
	writeJSON(w, http.StatusOK, downloadLink{
		SignedURL: signed,
		FileName:  file.Name,
		ExpiresIn: int(remote.SignedURLTTL.Seconds()),
	})
	return nil
}
