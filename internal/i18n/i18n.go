// Package i18n holds the user-visible strings the widget engine emits,
// in English and Spanish. The language choice is the only state the
// widget persists across sessions.
package i18n

// Supported languages.
const (
	LangEN = "en"
	LangES = "es"
)

// Translator resolves message keys for one language.
type Translator struct {
	lang string
}

// New returns a translator for the given language, defaulting to
// Spanish when the language is unknown.
func New(lang string) *Translator {
	if lang != LangEN && lang != LangES {
		lang = LangES
	}
	return &Translator{lang: lang}
}

// Lang returns the active language code.
func (t *Translator) Lang() string { return t.lang }

// T resolves a message key. Unknown keys come back verbatim so a
// missing entry is visible instead of silent.
func (t *Translator) T(key string) string {
	if m, ok := catalog[t.lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := catalog[LangEN][key]; ok {
		return s
	}
	return key
}

var catalog = map[string]map[string]string{
	LangEN: {
		"greeting":              "Hi! I'm your scheduling assistant. How can I help you today?",
		"connectionError":       "Sorry, I'm having trouble connecting. Please try again.",
		"somethingWentWrong":    "Something went wrong.",
		"confirmMessage":        "Please confirm your appointment details.",
		"coordinatesNotFound":   "Your address coordinates were not found. Please edit the address using the 'Edit Address' button.",
		"addressNotFound":       "Address not found. Please try a different search term.",
		"addressSearchError":    "Error searching for address. Please try again.",
		"selectLocationAlert":   "Please select a location on the map",
		"myAddressIs":           "My address is:",
		"coordinates":           "Coordinates:",
		"mapNotConfigured":      "The map is not available right now. Please contact support.",
		"tokenError":            "Unable to load appointment details. Please try again or contact support.",
		"fieldRequired":         "This field is required",
		"requirementInvalid":    "Please select a requirement from the list",
		"phoneValidationError":  "Phone number must be 10-11 digits",
		"phoneValidationErrorInternational": "Phone number must be between 7 and 15 digits",
		"emailValidationError":    "Please enter a valid email address",
		"timeRangeError":          "Time must be between 9 AM and 6 PM",
		"pleaseSelectFutureDate":  "Please select a future date",
		"pleaseSelectTimeSlot":    "Please select a time slot",
		"pleaseSelectAddressOnMap": "Please select an address on the map",
		"pastDateTimeNotAllowed":  "Past date and time are not allowed. Please select a future date and time.",
		"addressNotInstallable":   "This address is not available for installation service.",
		"viabilityCheckError":     "Unable to verify address availability. Please try again.",
		"bookingConfirmed":        "Booking confirmed successfully!",
		"customerName":            "Customer Name",
		"contactNumber":           "Contact Number",
		"customerEmail":           "Email",
		"customerRequirement":     "Customer Requirements",
		"address":                 "Address",
		"houseNumber":             "House Number",
		"sector":                  "Sector",
		"city":                    "City",
		"state":                   "State",
		"date":                    "Date",
		"time":                    "Time",
	},
	LangES: {
		"greeting":              "¡Hola! Soy tu asistente de citas. ¿Cómo puedo ayudarte hoy?",
		"connectionError":       "Lo siento, tengo problemas de conexión. Por favor intenta de nuevo.",
		"somethingWentWrong":    "Algo salió mal.",
		"confirmMessage":        "Por favor confirma los detalles de tu cita.",
		"coordinatesNotFound":   "No se encontraron las coordenadas de tu dirección. Edita la dirección con el botón 'Editar dirección'.",
		"addressNotFound":       "Dirección no encontrada. Intenta con otro término de búsqueda.",
		"addressSearchError":    "Error buscando la dirección. Por favor intenta de nuevo.",
		"selectLocationAlert":   "Por favor selecciona una ubicación en el mapa",
		"myAddressIs":           "Mi dirección es:",
		"coordinates":           "Coordenadas:",
		"mapNotConfigured":      "El mapa no está disponible en este momento. Contacta a soporte.",
		"tokenError":            "No se pudieron cargar los detalles de la cita. Intenta de nuevo o contacta a soporte.",
		"fieldRequired":         "Este campo es obligatorio",
		"requirementInvalid":    "Por favor selecciona un requerimiento de la lista",
		"phoneValidationError":  "El número de teléfono debe tener 10-11 dígitos",
		"phoneValidationErrorInternational": "El número de teléfono debe tener entre 7 y 15 dígitos",
		"emailValidationError":    "Por favor ingresa un correo válido",
		"timeRangeError":          "La hora debe estar entre 9 AM y 6 PM",
		"pleaseSelectFutureDate":  "Por favor selecciona una fecha futura",
		"pleaseSelectTimeSlot":    "Por favor selecciona una hora",
		"pleaseSelectAddressOnMap": "Por favor selecciona una dirección en el mapa",
		"pastDateTimeNotAllowed":  "No se permiten fechas y horas pasadas. Selecciona una fecha y hora futura.",
		"addressNotInstallable":   "Esta dirección no está disponible para el servicio de instalación.",
		"viabilityCheckError":     "No se pudo verificar la disponibilidad de la dirección. Intenta de nuevo.",
		"bookingConfirmed":        "¡Reserva confirmada con éxito!",
		"customerName":            "Nombre del Cliente",
		"contactNumber":           "Número de Contacto",
		"customerEmail":           "Correo",
		"customerRequirement":     "Requerimientos del Cliente",
		"address":                 "Dirección",
		"houseNumber":             "Número de Casa",
		"sector":                  "Sector",
		"city":                    "Ciudad",
		"state":                   "Estado",
		"date":                    "Fecha",
		"time":                    "Hora",
	},
}
