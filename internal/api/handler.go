package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/alerts"
	"pharmadesk/m/internal/auth"
	"pharmadesk/m/internal/checkout"
	"pharmadesk/m/internal/store"
)

type ctxKey string

const (
	ctxAccountID ctxKey = "accountID"
	ctxUsername  ctxKey = "username"
	ctxRole      ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	store    store.Store
	gate     *auth.Gate
	engine   *checkout.Engine
	secret   string
	lowStock int64
}

// New constructs a Handler over the given store.
func New(st store.Store, secret string, lowStockThreshold int64) *Handler {
	return &Handler{
		store:    st,
		gate:     auth.NewGate(st.Staff(), st.AuthEvents()),
		engine:   checkout.NewEngine(st.Inventory(), st.Patients(), st.Purchases()),
		secret:   secret,
		lowStock: lowStockThreshold,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Post("/auth/login", h.login)

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Post("/auth/logout", h.logout)
		pr.Post("/auth/unlock/{id}", h.unlockAccount)

		pr.Route("/staff", func(r chi.Router) {
			r.Get("/", h.listStaff)
			r.Post("/", h.createStaff)
			r.Put("/", h.replaceStaff)
			r.Put("/{id}", h.updateStaff)
			r.Delete("/{id}", h.deleteStaff)
			r.Put("/{id}/password", h.changePassword)
		})

		pr.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.listInventory)
			r.Post("/", h.createInventory)
			r.Put("/{id}", h.updateInventory)
			r.Delete("/{id}", h.deleteInventory)
			r.Post("/{id}/restock", h.restockInventory)
		})

		pr.Route("/patients", func(r chi.Router) {
			r.Get("/", h.listPatients)
			r.Post("/", h.createPatient)
			r.Get("/{id}", h.getPatient)
			r.Put("/{id}", h.updatePatient)
			r.Delete("/{id}", h.deletePatient)
		})

		pr.Route("/fiscal", func(r chi.Router) {
			r.Get("/", h.listFiscal)
			r.Post("/", h.createFiscal)
		})

		pr.Get("/purchases", h.listPurchases)

		pr.Get("/pharmacy", h.getPharmacy)
		pr.Put("/pharmacy", h.updatePharmacy)

		pr.Get("/alerts", h.listAlerts)

		pr.Post("/checkout", h.checkoutCart)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(account domain.StaffAccount) (string, error) {
	claims := authClaims{
		AccountID: account.ID,
		Username:  account.Username,
		Role:      account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxAccountID, claims.AccountID)
		ctx = context.WithValue(ctx, ctxUsername, claims.Username)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(string)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

// Auth handlers

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token   string              `json:"token"`
	Account domain.StaffAccount `json:"account"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	account, err := h.gate.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	token, err := h.generateToken(account)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, Account: account})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message":  "Logout successful. Redirecting to login page...",
		"redirect": "/login",
	})
}

func (h *Handler) unlockAccount(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.gate.Unlock(r.Context(), id); err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "account unlocked"})
}

type changePasswordRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "username and new_password are required")
		return
	}

	account, err := h.store.Staff().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	if account.Username != req.Username {
		respondError(w, http.StatusBadRequest, "username does not match account")
		return
	}

	if err := h.gate.ChangePassword(r.Context(), req.Username, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// Staff handlers

type staffRequest struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager) {
		return
	}
	accounts, err := h.store.Staff().List(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	for i := range accounts {
		accounts[i].Password = ""
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (h *Handler) createStaff(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager) {
		return
	}
	var req staffRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "name, username and password are required")
		return
	}
	if !domain.ValidRole(req.Role) {
		respondError(w, http.StatusBadRequest, "unknown role "+req.Role)
		return
	}

	accounts, err := h.store.Staff().List(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	for _, existing := range accounts {
		if existing.Username == req.Username {
			respondError(w, http.StatusConflict, "username already exists")
			return
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	account, err := h.store.Staff().Append(r.Context(), domain.StaffAccount{
		ID:             uuid.NewString(),
		Role:           req.Role,
		Name:           req.Name,
		Username:       req.Username,
		Password:       string(hashed),
		FirstTimeLogin: true,
	})
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	account.Password = ""
	respondJSON(w, http.StatusCreated, account)
}

type staffPatch struct {
	Role     *string `json:"role"`
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

func (h *Handler) updateStaff(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager) {
		return
	}
	var patch staffPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.Role != nil && !domain.ValidRole(*patch.Role) {
		respondError(w, http.StatusBadRequest, "unknown role "+*patch.Role)
		return
	}
	var hashed string
	if patch.Password != nil && *patch.Password != "" {
		h2, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "unable to secure password")
			return
		}
		hashed = string(h2)
	}

	account, err := h.store.Staff().Update(r.Context(), chi.URLParam(r, "id"), func(a *domain.StaffAccount) error {
		if patch.Role != nil {
			a.Role = *patch.Role
		}
		if patch.Name != nil {
			a.Name = *patch.Name
		}
		if patch.Username != nil {
			a.Username = *patch.Username
		}
		if hashed != "" {
			a.Password = hashed
		}
		return nil
	})
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	account.Password = ""
	respondJSON(w, http.StatusOK, account)
}

func (h *Handler) deleteStaff(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager) {
		return
	}
	if err := h.store.Staff().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "staff removed"})
}

// replaceStaff overwrites the entire staff collection, used by the manager
// view's bulk rewrite. Plaintext passwords in the payload are hashed;
// already-hashed values pass through untouched.
func (h *Handler) replaceStaff(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager) {
		return
	}
	var accounts []domain.StaffAccount
	if err := decodeJSON(r, &accounts); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i := range accounts {
		if accounts[i].Username == "" || !domain.ValidRole(accounts[i].Role) {
			respondError(w, http.StatusBadRequest, "every account needs a username and a valid role")
			return
		}
		if accounts[i].ID == "" {
			accounts[i].ID = uuid.NewString()
		}
		if accounts[i].Password != "" && !strings.HasPrefix(accounts[i].Password, "$2") {
			hashed, err := bcrypt.GenerateFromPassword([]byte(accounts[i].Password), bcrypt.DefaultCost)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "unable to secure password")
				return
			}
			accounts[i].Password = string(hashed)
		}
	}
	if err := h.store.Staff().ReplaceAll(r.Context(), accounts); err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "staff replaced"})
}

// Inventory handlers

type inventoryRequest struct {
	Name       string  `json:"name"`
	Quantity   int64   `json:"quantity"`
	Supplier   string  `json:"supplier"`
	UnitPrice  float64 `json:"unit_price"`
	Expiration string  `json:"expiration_date"`
}

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.Inventory().List(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) createInventory(w http.ResponseWriter, r *http.Request) {
	var req inventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Quantity < 0 || req.UnitPrice < 0 {
		respondError(w, http.StatusBadRequest, "quantity and unit_price must not be negative")
		return
	}
	expiration, err := parseOptionalDate(req.Expiration)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.store.Inventory().Append(r.Context(), domain.InventoryItem{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Quantity:   req.Quantity,
		Supplier:   req.Supplier,
		UnitPrice:  req.UnitPrice,
		Expiration: expiration,
	})
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

type inventoryPatch struct {
	Name       *string  `json:"name"`
	Quantity   *int64   `json:"quantity"`
	Supplier   *string  `json:"supplier"`
	UnitPrice  *float64 `json:"unit_price"`
	Expiration *string  `json:"expiration_date"`
}

func (h *Handler) updateInventory(w http.ResponseWriter, r *http.Request) {
	var patch inventoryPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.Quantity != nil && *patch.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}
	if patch.UnitPrice != nil && *patch.UnitPrice < 0 {
		respondError(w, http.StatusBadRequest, "unit_price must not be negative")
		return
	}
	var expiration *domain.Date
	if patch.Expiration != nil {
		parsed, err := parseOptionalDate(*patch.Expiration)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		expiration = parsed
	}

	item, err := h.store.Inventory().Update(r.Context(), chi.URLParam(r, "id"), func(i *domain.InventoryItem) error {
		if patch.Name != nil {
			i.Name = *patch.Name
		}
		if patch.Quantity != nil {
			i.Quantity = *patch.Quantity
		}
		if patch.Supplier != nil {
			i.Supplier = *patch.Supplier
		}
		if patch.UnitPrice != nil {
			i.UnitPrice = *patch.UnitPrice
		}
		if patch.Expiration != nil {
			i.Expiration = expiration
		}
		return nil
	})
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *Handler) deleteInventory(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Inventory().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "item removed"})
}

type restockRequest struct {
	Quantity     int64   `json:"quantity"`
	PricePerUnit float64 `json:"price_per_unit"`
	Supplier     string  `json:"supplier"`
}

// restockInventory adds stock for an item and appends the matching entry
// to the fiscal (restock) ledger.
func (h *Handler) restockInventory(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "quantity must be a positive number")
		return
	}
	if req.PricePerUnit < 0 {
		respondError(w, http.StatusBadRequest, "price_per_unit must not be negative")
		return
	}

	item, err := h.store.Inventory().Update(r.Context(), chi.URLParam(r, "id"), func(i *domain.InventoryItem) error {
		i.Quantity += req.Quantity
		return nil
	})
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	supplier := req.Supplier
	if supplier == "" {
		supplier = item.Supplier
	}
	entry, err := h.store.Fiscal().Append(r.Context(), domain.FiscalEntry{
		ID:                uuid.NewString(),
		ItemID:            item.ID,
		ItemName:          item.Name,
		QuantityPurchased: req.Quantity,
		Supplier:          supplier,
		PricePerUnit:      req.PricePerUnit,
	})
	if err != nil {
		// Stock is already increased; the ledger write failed. Reported,
		// not rolled back.
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"item": item, "fiscal_entry": entry})
}

// Patient handlers

type patientRequest struct {
	Name          string                `json:"name"`
	DateOfBirth   string                `json:"date_of_birth"`
	Address       string                `json:"address"`
	Phone         string                `json:"phone"`
	Email         string                `json:"email"`
	InsuranceID   string                `json:"insurance_id"`
	Prescriptions []domain.Prescription `json:"prescriptions"`
}

func (h *Handler) listPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.store.Patients().List(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, patients)
}

func (h *Handler) getPatient(w http.ResponseWriter, r *http.Request) {
	patient, err := h.store.Patients().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, patient)
}

func (h *Handler) createPatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := validPrescriptions(req.Prescriptions); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	patients, err := h.store.Patients().List(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	prescriptions := req.Prescriptions
	if prescriptions == nil {
		prescriptions = []domain.Prescription{}
	}
	patient, err := h.store.Patients().Append(r.Context(), domain.Patient{
		ID:            nextPatientID(patients),
		Name:          req.Name,
		DateOfBirth:   req.DateOfBirth,
		Address:       req.Address,
		Phone:         req.Phone,
		Email:         req.Email,
		InsuranceID:   req.InsuranceID,
		Prescriptions: prescriptions,
	})
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, patient)
}

type patientPatch struct {
	Name          *string                `json:"name"`
	DateOfBirth   *string                `json:"date_of_birth"`
	Address       *string                `json:"address"`
	Phone         *string                `json:"phone"`
	Email         *string                `json:"email"`
	InsuranceID   *string                `json:"insurance_id"`
	Prescriptions *[]domain.Prescription `json:"prescriptions"`
}

func (h *Handler) updatePatient(w http.ResponseWriter, r *http.Request) {
	var patch patientPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.Prescriptions != nil {
		if err := validPrescriptions(*patch.Prescriptions); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	patient, err := h.store.Patients().Update(r.Context(), chi.URLParam(r, "id"), func(p *domain.Patient) error {
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.DateOfBirth != nil {
			p.DateOfBirth = *patch.DateOfBirth
		}
		if patch.Address != nil {
			p.Address = *patch.Address
		}
		if patch.Phone != nil {
			p.Phone = *patch.Phone
		}
		if patch.Email != nil {
			p.Email = *patch.Email
		}
		if patch.InsuranceID != nil {
			p.InsuranceID = *patch.InsuranceID
		}
		if patch.Prescriptions != nil {
			p.Prescriptions = *patch.Prescriptions
		}
		return nil
	})
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, patient)
}

func (h *Handler) deletePatient(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Patients().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "patient removed"})
}

// Fiscal ledger handlers

func (h *Handler) listFiscal(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Fiscal().List(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) createFiscal(w http.ResponseWriter, r *http.Request) {
	var entry domain.FiscalEntry
	if err := decodeJSON(r, &entry); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if entry.ItemName == "" || entry.QuantityPurchased <= 0 {
		respondError(w, http.StatusBadRequest, "item_name and a positive quantity_purchased are required")
		return
	}
	if entry.PricePerUnit < 0 {
		respondError(w, http.StatusBadRequest, "price_per_unit must not be negative")
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	created, err := h.store.Fiscal().Append(r.Context(), entry)
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// Sales ledger

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.store.Purchases().List(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, purchases)
}

// Pharmacy details

func (h *Handler) getPharmacy(w http.ResponseWriter, r *http.Request) {
	details, err := h.store.Pharmacy().Get(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

func (h *Handler) updatePharmacy(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager) {
		return
	}
	var details domain.PharmacyDetails
	if err := decodeJSON(r, &details); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Pharmacy().Put(r.Context(), details); err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Pharmacy details updated successfully", "pharmacy": details})
}

// Alerts

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager, domain.RolePharmacist) {
		return
	}
	items, err := h.store.Inventory().List(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	found := alerts.Scan(items, time.Now(), h.lowStock)
	if found == nil {
		found = []alerts.Alert{}
	}
	respondJSON(w, http.StatusOK, found)
}

// Checkout

type otcItemRequest struct {
	Name      string  `json:"name"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type checkoutRequest struct {
	PatientID         string           `json:"patient_id"`
	PaymentMethod     string           `json:"payment_method"`
	PrescriptionDrugs []string         `json:"prescription_drugs"`
	OTCItems          []otcItemRequest `json:"otc_items"`
}

type checkoutResponse struct {
	PurchaseID string   `json:"purchase_id"`
	Total      float64  `json:"total"`
	Receipt    string   `json:"receipt"`
	Warnings   []string `json:"warnings,omitempty"`
}

// checkoutCart runs the whole cart server-side in one request: build the
// lines, validate, commit. The commit itself is best-effort sequential
// across inventory, prescriptions and the sales ledger; a failure part-way
// is reported to the caller with prior steps already applied.
func (h *Handler) checkoutCart(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := h.engine.NewSession(req.PatientID)
	var warnings []string
	for _, drug := range req.PrescriptionDrugs {
		warning, err := session.AddPrescriptionLine(r.Context(), drug)
		if err != nil {
			h.respondFailure(w, err)
			return
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}
	for _, item := range req.OTCItems {
		if err := session.AddOTCLine(item.Name, item.Quantity, item.UnitPrice); err != nil {
			h.respondFailure(w, err)
			return
		}
	}

	receipt, err := session.Commit(r.Context(), domain.PaymentMethod(req.PaymentMethod))
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, checkoutResponse{
		PurchaseID: receipt.PurchaseID,
		Total:      receipt.Total,
		Receipt:    receipt.Text,
		Warnings:   warnings,
	})
}

// Helpers

// respondFailure maps domain errors onto HTTP statuses.
func (h *Handler) respondFailure(w http.ResponseWriter, err error) {
	var expiredErr *checkout.ExpiredItemsError
	var notInInv *checkout.ItemNotInInventoryError
	var validationErr *checkout.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrAccountLocked):
		respondError(w, http.StatusForbidden, "account locked")
	case errors.As(err, &expiredErr):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":         expiredErr.Error(),
			"expired_items": expiredErr.Items,
		})
	case errors.As(err, &notInInv):
		respondError(w, http.StatusBadRequest, notInInv.Error())
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, validationErr.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func validPrescriptions(prescriptions []domain.Prescription) error {
	for _, p := range prescriptions {
		if p.Name == "" || p.Amount <= 0 {
			return errors.New("every prescription needs a name and a positive amount")
		}
	}
	return nil
}

// nextPatientID assigns monotonically increasing decimal ids.
func nextPatientID(patients []domain.Patient) string {
	var max int64
	for _, p := range patients {
		if n, err := strconv.ParseInt(p.ID, 10, 64); err == nil && n > max {
			max = n
		}
	}
	return strconv.FormatInt(max+1, 10)
}

func parseOptionalDate(val string) (*domain.Date, error) {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" || trimmed == "N/A" {
		return nil, nil
	}
	parsed, err := domain.ParseDate(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
