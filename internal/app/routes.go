package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Aggregated views
	r.HandleFunc("/api/events", deps.AggregatorHandler.GetEvents).Queries("from", "{from}", "to", "{to}").Methods("GET")
	r.HandleFunc("/api/events/layout", deps.AggregatorHandler.GetLayout).Queries("from", "{from}", "to", "{to}").Methods("GET")
	r.HandleFunc("/api/events.ics", deps.AggregatorHandler.ExportICS).Queries("from", "{from}", "to", "{to}").Methods("GET")
	r.HandleFunc("/api/events/reschedule", deps.RescheduleHandler.Reschedule).Methods("POST")

	// Native calendar
	r.HandleFunc("/api/calendar/event", deps.NativeHandler.GetEvents).Queries("from", "{from}", "to", "{to}").Methods("GET")
	r.HandleFunc("/api/calendar/event", deps.NativeHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/calendar/event/{eventId}", deps.NativeHandler.GetEvent).Methods("GET")
	r.HandleFunc("/api/calendar/event/{eventId}", deps.NativeHandler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/api/calendar/event/{eventId}", deps.NativeHandler.DeleteEvent).Methods("DELETE")

	// Routines
	r.HandleFunc("/api/routines", deps.RoutineHandler.ListRules).Methods("GET")
	r.HandleFunc("/api/routines", deps.RoutineHandler.StoreRule).Methods("POST")
	r.HandleFunc("/api/routines/materialize", deps.RoutineHandler.Materialize).Queries("from", "{from}", "to", "{to}").Methods("POST")
	r.HandleFunc("/api/routines/{ruleId}", deps.RoutineHandler.DeleteRule).Methods("DELETE")

	// Calendar connections
	r.HandleFunc("/api/connections", deps.ConnectionHandler.ListConnections).Methods("GET")
	r.HandleFunc("/api/connections", deps.ConnectionHandler.StoreConnection).Methods("POST")
	r.HandleFunc("/api/connections/{connectionId}", deps.ConnectionHandler.DeleteConnection).Methods("DELETE")

	// User management
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
	r.HandleFunc("/api/user/current", deps.UserHandler.UpdateUser).Methods("PUT")
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")
}
