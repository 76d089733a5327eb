package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"marketplace/command"
	"marketplace/domain"
	"marketplace/query"
)

const postCommandMaxSize = 64 * 1024 // 64 KiB

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, queries Queries, dispatcher Dispatcher, notes Notifications, auth Authenticator, logger *log.Logger) {
	e.GET("/api/products", getProducts(queries, logger))
	e.GET("/api/products/search", searchProducts(queries))
	e.GET("/api/products/:id", getProduct(queries))
	e.GET("/api/orders/:id/recommended", getRecommended(queries))
	e.GET("/api/locations/current", getCurrentLocation(queries, auth))
	e.GET("/api/notifications", getNotifications(notes, auth))
	e.POST("/api/commands", postCommands(dispatcher, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getProducts(queries Queries, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newProductRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		q := query.ProductQuery{
			Category:          c.QueryParam("category"),
			SortBy:            c.QueryParam("sortBy"),
			Order:             c.QueryParam("order"),
			ExclusiveStartKey: c.QueryParam("exclusiveStartKey"),
			PreviousPageKey:   c.QueryParam("previousPageKey"),
		}
		metrics.SetCursorProvided(q.ExclusiveStartKey != "" || q.PreviousPageKey != "")

		if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
			n, parseErr := strconv.Atoi(raw)
			if parseErr != nil || n <= 0 {
				metrics.SetErrorStage("invalid_limit")
				err = c.String(http.StatusBadRequest, "invalid limit")
				return err
			}
			q.Limit = n
		}
		if q.Latitude, err = floatParam(c, "latitude"); err != nil {
			metrics.SetErrorStage("invalid_latitude")
			err = c.String(http.StatusBadRequest, "invalid latitude")
			return err
		}
		if q.Longitude, err = floatParam(c, "longitude"); err != nil {
			metrics.SetErrorStage("invalid_longitude")
			err = c.String(http.StatusBadRequest, "invalid longitude")
			return err
		}

		fetchStart := time.Now()
		page, fetchErr := queries.Products(ctx, q)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			var invalidCursor *query.InvalidCursorError
			switch {
			case errors.As(fetchErr, &invalidCursor):
				metrics.SetErrorStage("invalid_cursor")
				err = c.String(http.StatusBadRequest, "invalid pagination cursor")
			case domain.IsValidation(fetchErr):
				metrics.SetErrorStage("invalid_query")
				err = c.String(http.StatusBadRequest, fetchErr.Error())
			default:
				metrics.SetErrorStage("storage")
				c.Logger().Error(fetchErr)
				err = c.String(http.StatusInternalServerError, fetchErr.Error())
			}
			return err
		}
		metrics.SetItemsReturned(page.Count)
		metrics.SetHasNextPage(page.LastEvaluatedURL != nil)

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, page)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getProduct(queries Queries) echo.HandlerFunc {
	return func(c echo.Context) error {
		v, err := queries.Product(c.Request().Context(), c.Param("id"))
		if err != nil {
			return viewError(c, err)
		}
		return c.JSON(http.StatusOK, v)
	}
}

func searchProducts(queries Queries) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 0
		if raw := c.QueryParam("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return c.String(http.StatusBadRequest, "invalid limit")
			}
			limit = n
		}
		views, err := queries.SearchByName(c.Request().Context(), c.QueryParam("name"), limit)
		if err != nil {
			return viewError(c, err)
		}
		if views == nil {
			views = []domain.ProductView{}
		}
		return c.JSON(http.StatusOK, views)
	}
}

func getRecommended(queries Queries) echo.HandlerFunc {
	return func(c echo.Context) error {
		views, err := queries.Recommended(c.Request().Context(), c.Param("id"))
		if err != nil {
			return viewError(c, err)
		}
		if views == nil {
			views = []domain.ProductView{}
		}
		return c.JSON(http.StatusOK, views)
	}
}

func getCurrentLocation(queries Queries, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		loc, err := queries.CurrentLocation(c.Request().Context(), userID)
		if err != nil {
			return viewError(c, err)
		}
		return c.JSON(http.StatusOK, loc)
	}
}

func getNotifications(notes Notifications, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		limit := 20
		if raw := c.QueryParam("limit"); raw != "" {
			n, parseErr := strconv.Atoi(raw)
			if parseErr != nil || n <= 0 {
				return c.String(http.StatusBadRequest, "invalid limit")
			}
			limit = n
		}
		feed, err := notes.Notifications(c.Request().Context(), userID, limit)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if feed == nil {
			feed = []domain.Notification{}
		}
		return c.JSON(http.StatusOK, feed)
	}
}

type postCommandResponse struct {
	Results []command.Result `json:"results"`
}

// postCommands accepts a batch of commands and dispatches them
// synchronously in order. The first failing command aborts the batch;
// earlier commands stay committed, which callers must expect given the
// at-least-appended semantics of the core.
func postCommands(dispatcher Dispatcher, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		lr := io.LimitReader(c.Request().Body, postCommandMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		cmds := make([]domain.Command, 0, 4)
		if err := dec.Decode(&cmds); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if len(cmds) == 0 {
			return c.String(http.StatusBadRequest, "empty batch")
		}

		ctx := c.Request().Context()
		results := make([]command.Result, 0, len(cmds))
		for i := range cmds {
			if cmds[i].IdempotencyKey == "" {
				cmds[i].IdempotencyKey = uuid.NewString()
			}
			cmds[i].ID = cmds[i].IdempotencyKey
			cmds[i].Timestamp = time.Now().UnixMilli()

			res, dispatchErr := dispatcher.Dispatch(ctx, domain.CommandEnvelope{
				ActorID: userID,
				Command: cmds[i],
			})
			if dispatchErr != nil {
				return commandError(c, dispatchErr)
			}
			results = append(results, res)
		}
		return c.JSON(http.StatusAccepted, postCommandResponse{Results: results})
	}
}

func commandError(c echo.Context, err error) error {
	var unknown *command.UnknownCommandTypeError
	switch {
	case errors.As(err, &unknown):
		return c.String(http.StatusBadRequest, unknown.Error())
	case domain.IsValidation(err):
		return c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return c.String(http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return c.String(http.StatusConflict, "conflict")
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}

func viewError(c echo.Context, err error) error {
	switch {
	case domain.IsValidation(err):
		return c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return c.String(http.StatusNotFound, "not found")
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}

func floatParam(c echo.Context, name string) (*float64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
