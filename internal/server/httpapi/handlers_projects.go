package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.projects.ListProjects(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, list, "projects fetched successfully")
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var body createProjectRequest
	if !s.bind(w, r, &body) {
		return
	}

	p, err := s.projects.CreateProject(r.Context(), principal(r), body.Name, body.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, p, "project created successfully")
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.projects.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, p, "project fetched successfully")
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var body createProjectRequest
	if !s.bind(w, r, &body) {
		return
	}

	p, err := s.projects.UpdateProject(r.Context(), chi.URLParam(r, "projectID"), body.Name, body.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, p, "project updated successfully")
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.projects.DeleteProject(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil, "project deleted successfully")
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	list, err := s.projects.ListMembers(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, list, "project members fetched successfully")
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	var body addMemberRequest
	if !s.bind(w, r, &body) {
		return
	}

	m, err := s.projects.AddMember(r.Context(), chi.URLParam(r, "projectID"), body.Email, models.Role(body.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, m, "member added successfully")
}

func (s *Server) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	var body updateRoleRequest
	if !s.bind(w, r, &body) {
		return
	}

	projectID, userID := chi.URLParam(r, "projectID"), chi.URLParam(r, "userID")
	if err := s.projects.UpdateMemberRole(r.Context(), projectID, userID, models.Role(body.Role)); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"userId": userID, "role": body.Role}, "member role updated successfully")
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	if err := s.projects.RemoveMember(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "userID")); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil, "member removed successfully")
}
