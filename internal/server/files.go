package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/excelytics/internal/sheet"
	"github.com/KaramelBytes/excelytics/internal/store"
	"github.com/KaramelBytes/excelytics/internal/upload"
	"github.com/KaramelBytes/excelytics/internal/utils"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const uploadField = "file"

type uploadResponse struct {
	Success      bool                 `json:"success"`
	TempID       string               `json:"tempId"`
	OriginalName string               `json:"originalName"`
	Size         int64                `json:"size"`
	Sheets       []sheet.SheetSummary `json:"sheets"`
}

type fileResponse struct {
	Success bool              `json:"success"`
	File    *store.FileRecord `json:"file"`
}

// handleUpload spools the multipart file, parses it and registers it as
// pending. Nothing is persisted until the upload is confirmed.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, &badRequest{msg: fmt.Sprintf("multipart field %q is required", uploadField)})
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	spool, size, err := s.spool(file, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wb, err := sheet.Parse(r.Context(), spool)
	if err != nil {
		_ = os.Remove(spool)
		var pe *sheet.ParseError
		if errors.As(err, &pe) {
			pe.Path = name
		}
		writeError(w, r, err)
		return
	}
	wb.Name = name
	id := s.uploads.Put(&upload.Pending{
		OwnerID:      ownerFrom(r.Context()),
		OriginalName: name,
		SpoolPath:    spool,
		Size:         size,
		Workbook:     wb,
	})
	slog.InfoContext(r.Context(), "upload parsed", "temp_id", id, "name", name, "sheets", len(wb.Sheets))
	writeJSON(w, http.StatusCreated, uploadResponse{
		Success:      true,
		TempID:       id,
		OriginalName: name,
		Size:         size,
		Sheets:       wb.Summaries(),
	})
}

// spool copies src to a new file in the spool directory, keeping the
// original extension.
func (s *Server) spool(src io.Reader, name string) (string, int64, error) {
	f, err := os.CreateTemp(s.cfg.SpoolDir, "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", 0, fmt.Errorf("create spool file: %w", err)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("write spool file: %w", err)
	}
	return f.Name(), n, nil
}

// handleConfirm moves a pending upload into permanent storage and records it.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tempID := mux.Vars(r)["tempId"]
	p, err := s.uploads.Get(tempID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p.OwnerID != ownerFrom(ctx) {
		writeError(w, r, upload.ErrExpired)
		return
	}
	if p, err = s.uploads.Take(tempID); err != nil {
		writeError(w, r, err)
		return
	}

	id := uuid.NewString()
	dst := filepath.Join(s.cfg.FilesDir, id+strings.ToLower(filepath.Ext(p.OriginalName)))
	if err := utils.MoveFile(p.SpoolPath, dst); err != nil {
		_ = os.Remove(p.SpoolPath)
		writeError(w, r, fmt.Errorf("store upload: %w", err))
		return
	}
	rec := &store.FileRecord{
		ID:           id,
		OwnerID:      p.OwnerID,
		OriginalName: p.OriginalName,
		StoredPath:   dst,
		Size:         p.Size,
		Sheets:       p.Workbook.Summaries(),
	}
	if err := s.store.CreateFile(ctx, rec); err != nil {
		_ = os.Remove(dst)
		writeError(w, r, err)
		return
	}
	slog.InfoContext(ctx, "upload confirmed", "file_id", id, "name", rec.OriginalName)
	writeJSON(w, http.StatusCreated, fileResponse{Success: true, File: rec})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "files": files})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.GetFile(r.Context(), ownerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fileResponse{Success: true, File: f})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := s.store.DeleteFile(ctx, ownerFrom(ctx), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := os.Remove(f.StoredPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.WarnContext(ctx, "remove stored file", "path", f.StoredPath, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": f.ID})
}

// loadWorkbook re-reads the stored spreadsheet of an owned file.
func (s *Server) loadWorkbook(r *http.Request, fileID string) (*store.FileRecord, *sheet.Workbook, error) {
	ctx := r.Context()
	f, err := s.store.GetFile(ctx, ownerFrom(ctx), fileID)
	if err != nil {
		return nil, nil, err
	}
	wb, err := sheet.Parse(ctx, f.StoredPath)
	if err != nil {
		return nil, nil, err
	}
	wb.Name = f.OriginalName
	return f, wb, nil
}
