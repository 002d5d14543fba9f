// careers.go — endpoints вакансий /api/v1/careers.
package handlers

import (
	"net/http"
	"time"

	"github.com/bigkaa/blockhood/internal/service"
)

// careerRequest — тело POST /api/v1/careers.
type careerRequest struct {
	Title            string     `json:"title"`
	Slug             string     `json:"slug"`
	Summary          string     `json:"summary"`
	About            string     `json:"about"`
	Responsibilities string     `json:"responsibilities"`
	Requirements     string     `json:"requirements"`
	NiceToHave       string     `json:"nice_to_have"`
	Benefits         string     `json:"benefits"`
	JobType          string     `json:"job_type"`
	Location         string     `json:"location"`
	Experience       string     `json:"experience"`
	SalaryRange      string     `json:"salary_range"`
	Deadline         *time.Time `json:"deadline"`
	CompanyName      string     `json:"company_name"`
	CompanyWebsite   *string    `json:"company_website"`
	CompanySize      *string    `json:"company_size"`
	CompanyFounded   *int       `json:"company_founded"`
	ImageURL         *string    `json:"image_url"`
	Tags             []string   `json:"tags"`
}

// careerPatchRequest — тело PATCH /api/v1/careers/{ref}.
type careerPatchRequest struct {
	Title            *string    `json:"title"`
	Summary          *string    `json:"summary"`
	About            *string    `json:"about"`
	Responsibilities *string    `json:"responsibilities"`
	Requirements     *string    `json:"requirements"`
	NiceToHave       *string    `json:"nice_to_have"`
	Benefits         *string    `json:"benefits"`
	JobType          *string    `json:"job_type"`
	Location         *string    `json:"location"`
	Experience       *string    `json:"experience"`
	SalaryRange      *string    `json:"salary_range"`
	Deadline         *time.Time `json:"deadline"`
	CompanyName      *string    `json:"company_name"`
	CompanyWebsite   *string    `json:"company_website"`
	CompanySize      *string    `json:"company_size"`
	CompanyFounded   *int       `json:"company_founded"`
	ImageURL         *string    `json:"image_url"`
	Tags             *[]string  `json:"tags"`
}

// ListCareers обрабатывает GET /api/v1/careers.
func (h *APIHandler) ListCareers(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	careers, err := h.svc.Careers.List(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(careers, q))
}

// GetCareer обрабатывает GET /api/v1/careers/{ref}.
func (h *APIHandler) GetCareer(w http.ResponseWriter, r *http.Request) {
	c, err := getByRef(r.Context(), pathRef(r), h.svc.Careers.GetByID, h.svc.Careers.Get)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateCareer обрабатывает POST /api/v1/careers.
func (h *APIHandler) CreateCareer(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req careerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.svc.Careers.Post(r.Context(), actor, service.CareerInput{
		Title:            req.Title,
		Slug:             req.Slug,
		Summary:          req.Summary,
		About:            req.About,
		Responsibilities: req.Responsibilities,
		Requirements:     req.Requirements,
		NiceToHave:       req.NiceToHave,
		Benefits:         req.Benefits,
		JobType:          req.JobType,
		Location:         req.Location,
		Experience:       req.Experience,
		SalaryRange:      req.SalaryRange,
		Deadline:         req.Deadline,
		CompanyName:      req.CompanyName,
		CompanyWebsite:   req.CompanyWebsite,
		CompanySize:      req.CompanySize,
		CompanyFounded:   req.CompanyFounded,
		ImageURL:         req.ImageURL,
		Tags:             joinTags(req.Tags),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/careers/"+c.Slug)
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCareer обрабатывает PATCH /api/v1/careers/{ref}, ref — ID вакансии.
func (h *APIHandler) UpdateCareer(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req careerPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := service.CareerPatch{
		Title:            req.Title,
		Summary:          req.Summary,
		About:            req.About,
		Responsibilities: req.Responsibilities,
		Requirements:     req.Requirements,
		NiceToHave:       req.NiceToHave,
		Benefits:         req.Benefits,
		JobType:          req.JobType,
		Location:         req.Location,
		Experience:       req.Experience,
		SalaryRange:      req.SalaryRange,
		Deadline:         req.Deadline,
		CompanyName:      req.CompanyName,
		CompanyWebsite:   req.CompanyWebsite,
		CompanySize:      req.CompanySize,
		CompanyFounded:   req.CompanyFounded,
		ImageURL:         req.ImageURL,
	}
	if req.Tags != nil {
		tags := joinTags(*req.Tags)
		patch.Tags = &tags
	}

	c, err := h.svc.Careers.Update(r.Context(), actor, pathRef(r), patch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCareer обрабатывает DELETE /api/v1/careers/{ref}, ref — ID вакансии.
func (h *APIHandler) DeleteCareer(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Careers.Delete(r.Context(), actor, pathRef(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
