// Package errors provides error code constants for boxd.
// Error codes are organized by category for consistent handling and lookup.
package errors

// -----------------------------------------------------------------------------
// Configuration Error Codes
// -----------------------------------------------------------------------------
// Use these codes for errors related to config file loading, parsing,
// and validation.

const (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = "CONFIG_NOT_FOUND"

	// ErrConfigParseFailed indicates the configuration file could not be parsed.
	// Usually a YAML syntax error or invalid structure.
	ErrConfigParseFailed = "CONFIG_PARSE_FAILED"

	// ErrConfigInvalid indicates configuration values are invalid.
	// Field values don't meet validation requirements.
	ErrConfigInvalid = "CONFIG_INVALID"

	// ErrConfigInitFailed indicates config initialization failed.
	// Unable to create config file or directory.
	ErrConfigInitFailed = "CONFIG_INIT_FAILED"

	// ErrConfigReadFailed indicates the config file could not be read.
	ErrConfigReadFailed = "CONFIG_READ_FAILED"

	// ErrConfigWriteFailed indicates the config file could not be written.
	ErrConfigWriteFailed = "CONFIG_WRITE_FAILED"
)

// -----------------------------------------------------------------------------
// Validation Error Codes
// -----------------------------------------------------------------------------
// Use these codes for experiment and input validation errors.

const (
	// ErrValidationRequired indicates a required field is missing.
	ErrValidationRequired = "VALIDATION_REQUIRED"

	// ErrValidationInvalidValue indicates a value is invalid.
	ErrValidationInvalidValue = "VALIDATION_INVALID_VALUE"

	// ErrValidationOutOfRange indicates a value is outside allowed range.
	ErrValidationOutOfRange = "VALIDATION_OUT_OF_RANGE"

	// ErrExperimentInvalid indicates an uploaded experiment failed validation.
	ErrExperimentInvalid = "EXPERIMENT_INVALID"

	// ErrExperimentNoTrials indicates the experiment timeline is empty.
	ErrExperimentNoTrials = "EXPERIMENT_NO_TRIALS"

	// ErrTrialSpecInvalid indicates a timeline entry is missing type or id.
	ErrTrialSpecInvalid = "TRIAL_SPEC_INVALID"

	// ErrTrialDuplicateID indicates two timeline entries share an id.
	ErrTrialDuplicateID = "TRIAL_DUPLICATE_ID"

	// ErrCommandInvalid indicates a console or control command could not be parsed.
	ErrCommandInvalid = "COMMAND_INVALID"

	// ErrCommandUnknown indicates the console command does not exist.
	ErrCommandUnknown = "COMMAND_UNKNOWN"
)

// -----------------------------------------------------------------------------
// Trial Error Codes
// -----------------------------------------------------------------------------
// Use these codes for trial construction and session lifecycle errors.

const (
	// ErrTrialTypeUnknown indicates the requested trial type is not registered.
	ErrTrialTypeUnknown = "TRIAL_TYPE_UNKNOWN"

	// ErrTrialParamsInvalid indicates trial parameters failed decoding or validation.
	ErrTrialParamsInvalid = "TRIAL_PARAMS_INVALID"

	// ErrTrialAlreadyRegistered indicates a trial type with this name already exists.
	ErrTrialAlreadyRegistered = "TRIAL_ALREADY_REGISTERED"

	// ErrSessionRunning indicates an experiment is already in progress.
	ErrSessionRunning = "SESSION_ALREADY_RUNNING"

	// ErrSessionNotRunning indicates no experiment is in progress.
	ErrSessionNotRunning = "SESSION_NOT_RUNNING"

	// ErrSessionNoExperiment indicates no experiment has been uploaded yet.
	ErrSessionNoExperiment = "SESSION_NO_EXPERIMENT"
)

// -----------------------------------------------------------------------------
// Hardware Error Codes
// -----------------------------------------------------------------------------
// Use these codes for GPIO, I2C, and display errors.

const (
	// ErrHardwareInitFailed indicates hardware initialization failed.
	ErrHardwareInitFailed = "HARDWARE_INIT_FAILED"

	// ErrHardwareUnavailable indicates the host has no usable GPIO.
	ErrHardwareUnavailable = "HARDWARE_UNAVAILABLE"

	// ErrGPIOPinNotFound indicates a named GPIO pin could not be resolved.
	ErrGPIOPinNotFound = "GPIO_PIN_NOT_FOUND"

	// ErrGPIOWriteFailed indicates driving an output pin failed.
	ErrGPIOWriteFailed = "GPIO_WRITE_FAILED"

	// ErrI2COpenFailed indicates the I2C bus could not be opened.
	ErrI2COpenFailed = "I2C_OPEN_FAILED"

	// ErrDisplayInitFailed indicates an OLED display failed to initialize.
	ErrDisplayInitFailed = "DISPLAY_INIT_FAILED"

	// ErrDisplayWriteFailed indicates pushing a frame to a display failed.
	ErrDisplayWriteFailed = "DISPLAY_WRITE_FAILED"

	// ErrTestAlreadyRunning indicates a hardware test of this name is in progress.
	ErrTestAlreadyRunning = "TEST_ALREADY_RUNNING"

	// ErrTestUnknown indicates the requested hardware test does not exist.
	ErrTestUnknown = "TEST_UNKNOWN"
)

// -----------------------------------------------------------------------------
// Persistence Error Codes
// -----------------------------------------------------------------------------
// Use these codes for data recording and export errors.

const (
	// ErrDataDirNotFound indicates the data directory does not exist.
	ErrDataDirNotFound = "DATA_DIR_NOT_FOUND"

	// ErrDataDirNotWritable indicates the data directory is not writable.
	ErrDataDirNotWritable = "DATA_DIR_NOT_WRITABLE"

	// ErrDataMarshalFailed indicates session data could not be serialized.
	ErrDataMarshalFailed = "DATA_MARSHAL_FAILED"

	// ErrDataWriteFailed indicates the session file could not be written.
	ErrDataWriteFailed = "DATA_WRITE_FAILED"

	// ErrExportFailed indicates a general export failure.
	ErrExportFailed = "EXPORT_FAILED"

	// ErrExportNoData indicates no data available to export.
	ErrExportNoData = "EXPORT_NO_DATA"

	// ErrExportReadFailed indicates a session file could not be read for export.
	ErrExportReadFailed = "EXPORT_READ_FAILED"
)

// -----------------------------------------------------------------------------
// Transport Error Codes
// -----------------------------------------------------------------------------
// Use these codes for WebSocket server and connectivity errors.

const (
	// ErrTransportListenFailed indicates the server could not bind its address.
	ErrTransportListenFailed = "TRANSPORT_LISTEN_FAILED"

	// ErrTransportUpgradeFailed indicates the WebSocket upgrade handshake failed.
	ErrTransportUpgradeFailed = "TRANSPORT_UPGRADE_FAILED"

	// ErrTransportMessageInvalid indicates an inbound message could not be parsed.
	ErrTransportMessageInvalid = "TRANSPORT_MESSAGE_INVALID"

	// ErrTransportClientSlow indicates a client's send buffer overflowed.
	ErrTransportClientSlow = "TRANSPORT_CLIENT_SLOW"
)

// -----------------------------------------------------------------------------
// Internal Error Codes
// -----------------------------------------------------------------------------
// Use these codes for internal/unexpected errors.

const (
	// ErrInternalError indicates an unexpected internal error.
	ErrInternalError = "INTERNAL_ERROR"

	// ErrInternalInvariantViolation indicates a programming invariant was violated.
	ErrInternalInvariantViolation = "INTERNAL_INVARIANT_VIOLATION"

	// ErrInternalNilPointer indicates an unexpected nil pointer.
	ErrInternalNilPointer = "INTERNAL_NIL_POINTER"

	// ErrInternalPanic indicates a panic was recovered.
	ErrInternalPanic = "INTERNAL_PANIC"
)

// -----------------------------------------------------------------------------
// Error Code Lookup Helpers
// -----------------------------------------------------------------------------

// CodeCategory returns the category for a given error code.
// Returns CategoryInternal if the code is not recognized.
func CodeCategory(code string) Category {
	switch code {
	// Config codes
	case ErrConfigNotFound, ErrConfigParseFailed, ErrConfigInvalid,
		ErrConfigInitFailed, ErrConfigReadFailed, ErrConfigWriteFailed:
		return CategoryConfig

	// Validation codes
	case ErrValidationRequired, ErrValidationInvalidValue, ErrValidationOutOfRange,
		ErrExperimentInvalid, ErrExperimentNoTrials, ErrTrialSpecInvalid,
		ErrTrialDuplicateID, ErrCommandInvalid, ErrCommandUnknown:
		return CategoryValidation

	// Trial codes
	case ErrTrialTypeUnknown, ErrTrialParamsInvalid, ErrTrialAlreadyRegistered,
		ErrSessionRunning, ErrSessionNotRunning, ErrSessionNoExperiment:
		return CategoryTrial

	// Hardware codes
	case ErrHardwareInitFailed, ErrHardwareUnavailable, ErrGPIOPinNotFound,
		ErrGPIOWriteFailed, ErrI2COpenFailed, ErrDisplayInitFailed,
		ErrDisplayWriteFailed, ErrTestAlreadyRunning, ErrTestUnknown:
		return CategoryHardware

	// Persistence codes
	case ErrDataDirNotFound, ErrDataDirNotWritable, ErrDataMarshalFailed,
		ErrDataWriteFailed, ErrExportFailed, ErrExportNoData, ErrExportReadFailed:
		return CategoryPersistence

	// Transport codes
	case ErrTransportListenFailed, ErrTransportUpgradeFailed,
		ErrTransportMessageInvalid, ErrTransportClientSlow:
		return CategoryTransport

	// Internal codes
	case ErrInternalError, ErrInternalInvariantViolation,
		ErrInternalNilPointer, ErrInternalPanic:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// IsConfigCode returns true if the code is a configuration error code.
func IsConfigCode(code string) bool {
	return CodeCategory(code) == CategoryConfig
}

// IsValidationCode returns true if the code is a validation error code.
func IsValidationCode(code string) bool {
	return CodeCategory(code) == CategoryValidation
}

// IsTrialCode returns true if the code is a trial error code.
func IsTrialCode(code string) bool {
	return CodeCategory(code) == CategoryTrial
}

// IsHardwareCode returns true if the code is a hardware error code.
func IsHardwareCode(code string) bool {
	return CodeCategory(code) == CategoryHardware
}

// IsPersistenceCode returns true if the code is a persistence error code.
func IsPersistenceCode(code string) bool {
	return CodeCategory(code) == CategoryPersistence
}

// IsTransportCode returns true if the code is a transport error code.
func IsTransportCode(code string) bool {
	return CodeCategory(code) == CategoryTransport
}

// IsInternalCode returns true if the code is an internal error code.
func IsInternalCode(code string) bool {
	return CodeCategory(code) == CategoryInternal
}
