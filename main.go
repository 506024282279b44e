package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/billbatista/rachaconta/config"
	"github.com/billbatista/rachaconta/eventlogger"
	"github.com/billbatista/rachaconta/ledger"
	"github.com/billbatista/rachaconta/session"
	"github.com/billbatista/rachaconta/user"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		printErrorAndExit("loading configuration", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		printErrorAndExit("database connection", err)
	}
	err = db.Ping()
	if err != nil {
		printErrorAndExit("pinging database", err)
	}

	evtlogger := eventlogger.NewSqlEventLogger(db)
	worker := eventlogger.NewWorker(evtlogger, 100)
	worker.Start()
	defer worker.Shutdown()

	userRepo := user.NewRepository(db)
	sessionRepo := session.NewRepository(db)
	facts := ledger.NewRepository(db)
	svc := ledger.NewService(facts, userRepo)

	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(session.Middleware(sessionRepo))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	router.Post("/user/register", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Email     string `json:"email"`
			Password  string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		registeredUser, err := userRepo.Register(ctx, req.FirstName, req.LastName, req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, user.ErrEmailExists):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, user.ErrBlankPassword), errors.Is(err, user.ErrInvalidEmail), errors.Is(err, user.ErrBlankName):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				slog.Error("failed to register user", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		sess, err := sessionRepo.Create(ctx, registeredUser.ID)
		if err != nil {
			slog.Error("failed to create session", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		setSessionCookie(w, sess)

		worker.Log(eventlogger.NewEvent(
			eventlogger.WithType("user.registered"),
			eventlogger.WithActor(registeredUser.ID),
			eventlogger.WithData(map[string]string{"email": registeredUser.Email}),
		))

		writeJSON(w, http.StatusCreated, registeredUser)
	})

	router.Post("/user/login", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		userdb, err := userRepo.GetByEmail(ctx, req.Email)
		if err != nil {
			slog.Error("failed to fetch user", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if userdb == nil || userRepo.VerifyPassword(userdb.PasswordHash, req.Password) != nil {
			http.Error(w, "invalid email or password", http.StatusUnauthorized)
			return
		}

		sess, err := sessionRepo.Create(ctx, userdb.ID)
		if err != nil {
			slog.Error("failed to create session", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		setSessionCookie(w, sess)

		worker.Log(eventlogger.NewEvent(
			eventlogger.WithType("user.logged_in"),
			eventlogger.WithActor(userdb.ID),
		))

		writeJSON(w, http.StatusOK, userdb)
	})

	router.Post("/user/logout", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err == nil {
			sessionRepo.Delete(r.Context(), cookie.Value)
		}

		http.SetCookie(w, &http.Cookie{
			Name:   session.CookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		w.WriteHeader(http.StatusNoContent)
	})

	// Authenticated API. Handlers read the user id from the session
	// once and pass it explicitly into every engine call.
	router.Group(func(r chi.Router) {
		r.Use(session.RequireAuth)

		r.Get("/api/balances", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := session.UserID(r.Context())

			balances, err := svc.MemberBalances(r.Context(), userID)
			if err != nil {
				slog.Error("failed to compute member balances", "error", err, "user_id", userID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, balances)
		})

		r.Get("/api/balances/summary", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := session.UserID(r.Context())

			summary, err := svc.Summary(r.Context(), userID)
			if err != nil {
				slog.Error("failed to compute account summary", "error", err, "user_id", userID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, summary)
		})

		r.Get("/api/balances/trend", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := session.UserID(r.Context())

			months := 6
			if v := r.URL.Query().Get("months"); v != "" {
				parsed, err := strconv.Atoi(v)
				if err != nil || parsed < 1 || parsed > 60 {
					http.Error(w, "months must be between 1 and 60", http.StatusBadRequest)
					return
				}
				months = parsed
			}

			trend, err := svc.MonthlyTrend(r.Context(), userID, months)
			if err != nil {
				slog.Error("failed to compute monthly trend", "error", err, "user_id", userID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, trend)
		})

		r.Get("/api/expenses/you-owe", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := session.UserID(r.Context())

			page, err := svc.ExpensesYouOwe(r.Context(), userID, pageFromQuery(r))
			if err != nil {
				slog.Error("failed to list owed expenses", "error", err, "user_id", userID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, page)
		})

		r.Get("/api/expenses/you-are-owed", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := session.UserID(r.Context())

			page, err := svc.ExpensesYouAreOwed(r.Context(), userID, pageFromQuery(r))
			if err != nil {
				slog.Error("failed to list owing expenses", "error", err, "user_id", userID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, page)
		})

		r.Post("/api/expenses", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := session.UserID(r.Context())

			var req struct {
				Description  string              `json:"description"`
				Amount       decimal.Decimal     `json:"amount"`
				Date         time.Time           `json:"date"`
				GroupID      uuid.NullUUID       `json:"group_id"`
				SplitType    ledger.SplitType    `json:"split_type"`
				Participants []ledger.SplitInput `json:"participants"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			if req.Date.IsZero() {
				req.Date = time.Now().UTC()
			}

			expense, err := svc.RecordExpense(r.Context(), req.Description, req.Amount, req.Date, userID, req.GroupID, req.SplitType, req.Participants)
			if err != nil {
				if errors.Is(err, ledger.ErrValidation) {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				slog.Error("failed to record expense", "error", err, "user_id", userID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			worker.Log(eventlogger.NewEvent(
				eventlogger.WithType("expense.recorded"),
				eventlogger.WithActor(userID),
				eventlogger.WithData(ledger.ExpenseRecordedEvent{
					ExpenseID:   expense.ID.String(),
					PaidBy:      expense.PaidBy.String(),
					Amount:      expense.Amount.StringFixed(2),
					Description: expense.Description,
					SplitType:   expense.SplitType,
					Date:        expense.Date,
					ShareCount:  len(expense.Shares),
				}),
			))

			writeJSON(w, http.StatusCreated, expense)
		})

		r.Delete("/api/expenses/{id}", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := session.UserID(r.Context())

			expenseID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid expense id", http.StatusBadRequest)
				return
			}

			err = svc.DeleteExpense(r.Context(), expenseID, userID)
			if err != nil {
				if errors.Is(err, ledger.ErrExpenseNotFound) {
					http.Error(w, err.Error(), http.StatusNotFound)
					return
				}
				slog.Error("failed to delete expense", "error", err, "user_id", userID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			worker.Log(eventlogger.NewEvent(
				eventlogger.WithType("expense.deleted"),
				eventlogger.WithActor(userID),
				eventlogger.WithData(ledger.ExpenseDeletedEvent{
					ExpenseID: expenseID.String(),
					DeletedBy: userID.String(),
				}),
			))

			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/api/settlements", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := session.UserID(r.Context())

			var req struct {
				FromUserID  uuid.NullUUID   `json:"from_user_id"`
				ToUserID    uuid.UUID       `json:"to_user_id"`
				Amount      decimal.Decimal `json:"amount"`
				Description string          `json:"description"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			from := userID
			if req.FromUserID.Valid {
				from = req.FromUserID.UUID
			}

			settlement, err := svc.Settle(r.Context(), from, req.ToUserID, userID, req.Amount, req.Description)
			if err != nil {
				if errors.Is(err, ledger.ErrValidation) {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				slog.Error("failed to record settlement", "error", err, "user_id", userID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			worker.Log(eventlogger.NewEvent(
				eventlogger.WithType("settlement.recorded"),
				eventlogger.WithActor(userID),
				eventlogger.WithData(ledger.SettlementRecordedEvent{
					SettlementID: settlement.ID.String(),
					FromUserID:   settlement.FromUserID.String(),
					ToUserID:     settlement.ToUserID.String(),
					Amount:       settlement.Amount.StringFixed(2),
					Date:         settlement.Date,
				}),
			))

			writeJSON(w, http.StatusCreated, settlement)
		})

		r.Post("/api/groups", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := session.UserID(r.Context())

			var req struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			group, err := svc.CreateGroup(r.Context(), req.Name, userID)
			if err != nil {
				if errors.Is(err, ledger.ErrValidation) {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				slog.Error("failed to create group", "error", err, "user_id", userID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusCreated, group)
		})

		r.Get("/api/events", func(w http.ResponseWriter, r *http.Request) {
			eventType := r.URL.Query().Get("type")
			if eventType == "" {
				http.Error(w, "type is required", http.StatusBadRequest)
				return
			}
			limit := 50
			if v := r.URL.Query().Get("limit"); v != "" {
				parsed, err := strconv.Atoi(v)
				if err != nil || parsed < 1 || parsed > 500 {
					http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
					return
				}
				limit = parsed
			}

			events, err := evtlogger.ListByType(r.Context(), eventType, limit)
			if err != nil {
				slog.Error("failed to list events", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, events)
		})

		r.Get("/api/groups", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := session.UserID(r.Context())

			groups, err := svc.Groups(r.Context(), userID)
			if err != nil {
				slog.Error("failed to list groups", "error", err, "user_id", userID)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, groups)
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("server starting", "addr", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		printErrorAndExit("http server", err)
	}
}

func pageFromQuery(r *http.Request) ledger.Page {
	var page ledger.Page
	if v := r.URL.Query().Get("page"); v != "" {
		page.Number, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("size"); v != "" {
		page.Size, _ = strconv.Atoi(v)
	}
	return page
}

func setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func printErrorAndExit(msg string, e error) {
	slog.Error(msg, "error", e)
	os.Exit(1)
}
