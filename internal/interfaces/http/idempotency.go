package http

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/pkg/logger"
)

// HeaderIdempotencyKey cabecera que el cliente envía para reintentar sin duplicar.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 200

	// idempotencyLockTTL vida máxima de la reserva mientras el handler corre; si el proceso
	// muere a mitad, la clave se libera sola.
	idempotencyLockTTL = 30 * time.Second

	statePending = "pending"
	stateDone    = "done"
)

// IdempotencyStore operaciones mínimas del almacén (redis) que usa el middleware.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type idempotencyRecord struct {
	State       string `json:"state"`
	Status      int    `json:"status,omitempty"`
	Body        string `json:"body,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency guarda la respuesta de una petición mutante bajo su Idempotency-Key y la
// devuelve tal cual si el cliente repite la misma petición. Reusar la clave con otro cuerpo
// es un error. Sin cabecera, o sin store, la petición pasa sin cambios.
//
// La clave se reserva (SET NX, estado pending) antes de ejecutar el handler: una repetición
// concurrente recibe 409 con Retry-After en lugar de ejecutarse otra vez. Al terminar, la
// reserva se reemplaza por la respuesta; las 5xx y los conflictos reintentables no se
// guardan y liberan la clave.
func Idempotency(store IdempotencyStore, ttl time.Duration, log *logger.Logger) fiber.Handler {
	lockTTL := idempotencyLockTTL
	if ttl > 0 && ttl < lockTTL {
		lockTTL = ttl
	}
	return func(c *fiber.Ctx) error {
		idemKey := strings.TrimSpace(c.Get(HeaderIdempotencyKey))
		if store == nil || idemKey == "" {
			return c.Next()
		}
		if len(idemKey) > maxIdempotencyKeyLen {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "Idempotency-Key demasiado larga"})
		}

		ctx := c.UserContext()
		requestHash := hashBody(c.Body())
		key := store.IdempotencyKey(idempotencyScope(c), idemKey)

		pending, err := json.Marshal(idempotencyRecord{State: statePending, RequestHash: requestHash})
		if err != nil {
			return err
		}
		acquired, err := store.SetNX(ctx, key, string(pending), lockTTL)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("reservar clave de idempotencia")
			return storeUnavailable(c)
		}
		if !acquired {
			return replayOrWait(c, store, key, requestHash, log)
		}

		handlerErr := c.Next()

		// La limpieza no depende de que el cliente siga conectado.
		cleanupCtx := context.WithoutCancel(ctx)
		status := c.Response().StatusCode()
		if handlerErr != nil || !cacheable(status, c.GetRespHeader(fiber.HeaderRetryAfter)) {
			release(cleanupCtx, store, key, log)
			return handlerErr
		}
		rec := idempotencyRecord{
			State:       stateDone,
			Status:      status,
			Body:        base64.StdEncoding.EncodeToString(c.Response().Body()),
			ContentType: c.GetRespHeader(fiber.HeaderContentType),
			RequestHash: requestHash,
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			log.Error().Err(err).Msg("serializar registro de idempotencia")
			release(cleanupCtx, store, key, log)
			return nil
		}
		// Un fallo al guardar no invalida la respuesta ya producida.
		if err := store.Set(cleanupCtx, key, string(payload), ttl); err != nil {
			log.Error().Err(err).Str("key", key).Msg("guardar registro de idempotencia")
			release(cleanupCtx, store, key, log)
		}
		return nil
	}
}

// replayOrWait la clave ya existe: repite la respuesta guardada o, si la petición original
// sigue en curso, pide reintentar.
func replayOrWait(c *fiber.Ctx, store IdempotencyStore, key, requestHash string, log *logger.Logger) error {
	stored, err := store.Get(c.UserContext(), key)
	switch {
	case errors.Is(err, redis.Nil):
		// La reserva expiró o se liberó entre SETNX y GET.
		return inProgress(c)
	case err != nil:
		log.Error().Err(err).Str("key", key).Msg("consultar registro de idempotencia")
		return storeUnavailable(c)
	}
	var rec idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &rec); err != nil {
		log.Error().Err(err).Str("key", key).Msg("decodificar registro de idempotencia")
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "DEPENDENCY", Message: "registro de idempotencia ilegible"})
	}
	if rec.RequestHash != requestHash {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "IDEMPOTENCY_KEY_REUSED", Message: "Idempotency-Key reutilizada con otro cuerpo"})
	}
	if rec.State == statePending {
		return inProgress(c)
	}
	return writeStored(c, rec)
}

func release(ctx context.Context, store IdempotencyStore, key string, log *logger.Logger) {
	if err := store.Del(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("liberar clave de idempotencia")
	}
}

func inProgress(c *fiber.Ctx) error {
	c.Set(fiber.HeaderRetryAfter, "1")
	return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "IDEMPOTENCY_IN_PROGRESS", Message: "la petición original con esta Idempotency-Key sigue en curso"})
}

func storeUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "DEPENDENCY", Message: "almacén de idempotencia no disponible"})
}

// idempotencyScope las claves son por usuario, empresa, método y ruta.
func idempotencyScope(c *fiber.Ctx) string {
	return strings.Join([]string{GetUserID(c), GetCompanyID(c), c.Method(), c.Path()}, "|")
}

func cacheable(status int, retryAfter string) bool {
	return status < fiber.StatusInternalServerError && retryAfter == ""
}

func writeStored(c *fiber.Ctx, rec idempotencyRecord) error {
	body, err := base64.StdEncoding.DecodeString(rec.Body)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "DEPENDENCY", Message: "registro de idempotencia ilegible"})
	}
	if rec.ContentType != "" {
		c.Set(fiber.HeaderContentType, rec.ContentType)
	}
	c.Set(headerReplayed, "true")
	return c.Status(rec.Status).Send(body)
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}
