package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/taskforge/orchestrator/internal/errors"
)

func TestErrors(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Structured Errors Suite")
}

var _ = Describe("Structured Errors", func() {
	Describe("AppError", func() {
		Context("basic error creation", func() {
			It("should create error with correct properties", func() {
				err := errors.New(errors.ErrorTypeValidation, "test message")

				Expect(err.Type).To(Equal(errors.ErrorTypeValidation))
				Expect(err.Message).To(Equal("test message"))
				Expect(err.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(err.Details).To(BeEmpty())
				Expect(err.Cause).To(BeNil())
			})

			It("should implement error interface correctly", func() {
				err := errors.New(errors.ErrorTypeValidation, "test message")
				Expect(err.Error()).To(Equal("validation: test message"))
			})

			It("should include details in error string when present", func() {
				err := errors.New(errors.ErrorTypeValidation, "test message").WithDetails("extra info")
				Expect(err.Error()).To(Equal("validation: test message (extra info)"))
			})
		})

		Context("error wrapping", func() {
			It("should wrap underlying error", func() {
				originalErr := stderrors.New("original error")
				wrappedErr := errors.Wrap(originalErr, errors.ErrorTypeDatabase, "operation failed")

				Expect(wrappedErr.Type).To(Equal(errors.ErrorTypeDatabase))
				Expect(wrappedErr.Message).To(Equal("operation failed"))
				Expect(wrappedErr.Cause).To(Equal(originalErr))
				Expect(wrappedErr.Unwrap()).To(Equal(originalErr))
			})

			It("should format wrapped error with arguments", func() {
				originalErr := stderrors.New("connection refused")
				wrappedErr := errors.Wrapf(originalErr, errors.ErrorTypeNetwork, "failed to connect to %s:%d", "localhost", 5432)

				Expect(wrappedErr.Message).To(Equal("failed to connect to localhost:5432"))
				Expect(wrappedErr.Cause).To(Equal(originalErr))
			})
		})

		Context("adding details", func() {
			It("should add details to existing error", func() {
				err := errors.New(errors.ErrorTypeAuth, "authentication failed")
				detailedErr := err.WithDetails("invalid token")

				Expect(detailedErr.Details).To(Equal("invalid token"))
				Expect(detailedErr).To(BeIdenticalTo(err))
			})

			It("should add formatted details", func() {
				err := errors.New(errors.ErrorTypeAuth, "authentication failed")
				detailedErr := err.WithDetailsf("user %s, attempt %d", "jane", 3)

				Expect(detailedErr.Details).To(Equal("user jane, attempt 3"))
			})
		})
	})

	Describe("HTTP Status Code Mapping", func() {
		It("should map error types to correct HTTP status codes", func() {
			testCases := []struct {
				errorType  errors.ErrorType
				statusCode int
			}{
				{errors.ErrorTypeValidation, http.StatusBadRequest},
				{errors.ErrorTypeAuth, http.StatusUnauthorized},
				{errors.ErrorTypeNotFound, http.StatusNotFound},
				{errors.ErrorTypeConflict, http.StatusConflict},
				{errors.ErrorTypeTimeout, http.StatusRequestTimeout},
				{errors.ErrorTypeRateLimit, http.StatusTooManyRequests},
				{errors.ErrorTypeDatabase, http.StatusInternalServerError},
				{errors.ErrorTypeNetwork, http.StatusInternalServerError},
				{errors.ErrorTypeInternal, http.StatusInternalServerError},
				{errors.ErrorTypeInvalidState, http.StatusConflict},
				{errors.ErrorTypeCircuitOpen, http.StatusServiceUnavailable},
			}

			for _, tc := range testCases {
				err := errors.New(tc.errorType, "test message")
				Expect(err.StatusCode).To(Equal(tc.statusCode))
			}
		})
	})

	Describe("Predefined Error Constructors", func() {
		It("should create validation error", func() {
			err := errors.NewValidationError("invalid input")
			Expect(err.Type).To(Equal(errors.ErrorTypeValidation))
			Expect(err.Message).To(Equal("invalid input"))
		})

		It("should create database error", func() {
			originalErr := stderrors.New("connection lost")
			err := errors.NewDatabaseError("query", originalErr)

			Expect(err.Type).To(Equal(errors.ErrorTypeDatabase))
			Expect(err.Message).To(ContainSubstring("database operation failed: query"))
			Expect(err.Cause).To(Equal(originalErr))
		})

		It("should create not found error", func() {
			err := errors.NewNotFoundError("todo")
			Expect(err.Type).To(Equal(errors.ErrorTypeNotFound))
			Expect(err.Message).To(Equal("todo not found"))
		})

		It("should create timeout error", func() {
			err := errors.NewTimeoutError("graph update")
			Expect(err.Type).To(Equal(errors.ErrorTypeTimeout))
			Expect(err.Message).To(Equal("operation timed out: graph update"))
		})

		It("should create a circuit-open error naming the breaker", func() {
			err := errors.NewCircuitOpenError("nlp-backend")
			Expect(err.Type).To(Equal(errors.ErrorTypeCircuitOpen))
			Expect(err.Message).To(ContainSubstring("nlp-backend"))
		})
	})

	Describe("Error Type Checking", func() {
		It("should correctly identify error types", func() {
			validationErr := errors.NewValidationError("test")
			authErr := errors.NewAuthError("test")

			Expect(errors.IsType(validationErr, errors.ErrorTypeValidation)).To(BeTrue())
			Expect(errors.IsType(validationErr, errors.ErrorTypeAuth)).To(BeFalse())
			Expect(errors.IsType(authErr, errors.ErrorTypeAuth)).To(BeTrue())
		})

		It("should handle non-AppError types", func() {
			regularErr := stderrors.New("regular error")
			Expect(errors.IsType(regularErr, errors.ErrorTypeValidation)).To(BeFalse())
			Expect(errors.GetType(regularErr)).To(Equal(errors.ErrorTypeInternal))
		})
	})

	Describe("Retry classification", func() {
		It("treats timeouts, network, database, conflict and rate-limit errors as retryable", func() {
			Expect(errors.Retryable(errors.NewTimeoutError("x"))).To(BeTrue())
			Expect(errors.Retryable(errors.New(errors.ErrorTypeNetwork, "x"))).To(BeTrue())
			Expect(errors.Retryable(errors.NewDatabaseError("x", nil))).To(BeTrue())
			Expect(errors.Retryable(errors.NewConflictError("x"))).To(BeTrue())
		})

		It("never retries validation, auth, invalid-state or not-found errors", func() {
			Expect(errors.Retryable(errors.NewValidationError("x"))).To(BeFalse())
			Expect(errors.Retryable(errors.NewAuthError("x"))).To(BeFalse())
			Expect(errors.Retryable(errors.NewInvalidStateError("x"))).To(BeFalse())
			Expect(errors.Retryable(errors.NewNotFoundError("x"))).To(BeFalse())
		})
	})

	Describe("Safe Error Messages", func() {
		It("passes validation messages through but maps everything else to a safe generic message", func() {
			Expect(errors.SafeErrorMessage(errors.NewValidationError("specific validation message"))).
				To(Equal("specific validation message"))
			Expect(errors.SafeErrorMessage(errors.New(errors.ErrorTypeNotFound, "internal detail"))).
				To(Equal(errors.ErrorMessages.ResourceNotFound))
			Expect(errors.SafeErrorMessage(errors.New(errors.ErrorTypeDatabase, "internal detail"))).
				To(Equal("An internal error occurred"))
		})

		It("returns a generic message for plain errors", func() {
			Expect(errors.SafeErrorMessage(stderrors.New("internal panic"))).
				To(Equal("An unexpected error occurred"))
		})
	})

	Describe("Logging Fields", func() {
		It("should generate structured logging fields", func() {
			originalErr := stderrors.New("connection failed")
			appErr := errors.Wrapf(originalErr, errors.ErrorTypeDatabase, "query failed").
				WithDetails("table: todos")

			fields := errors.LogFields(appErr)

			Expect(fields).To(HaveKey("error"))
			Expect(fields["error_type"]).To(Equal("database"))
			Expect(fields["status_code"]).To(Equal(http.StatusInternalServerError))
			Expect(fields["error_details"]).To(Equal("table: todos"))
			Expect(fields["underlying_error"]).To(Equal("connection failed"))
		})

		It("should handle simple AppError without details", func() {
			err := errors.NewValidationError("invalid input")
			fields := errors.LogFields(err)

			Expect(fields).To(HaveKey("error_type"))
			Expect(fields).NotTo(HaveKey("error_details"))
			Expect(fields).NotTo(HaveKey("underlying_error"))
		})
	})

	Describe("Error Chaining", func() {
		It("should handle empty error list", func() {
			Expect(errors.Chain()).To(BeNil())
		})

		It("should handle single error", func() {
			originalErr := stderrors.New("single error")
			Expect(errors.Chain(originalErr)).To(Equal(originalErr))
		})

		It("should filter nil errors and chain the rest", func() {
			err1 := stderrors.New("error 1")
			err2 := stderrors.New("error 2")

			err := errors.Chain(err1, nil, err2, nil)

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("error 1"))
			Expect(err.Error()).To(ContainSubstring("error 2"))
			Expect(err.Error()).To(ContainSubstring(" -> "))
		})

		It("should return nil when all errors are nil", func() {
			Expect(errors.Chain(nil, nil, nil)).To(BeNil())
		})
	})
})
