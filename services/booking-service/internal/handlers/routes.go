package handlers

import "net/http"

// Register mounts the public booking and dashboard routes on mux.
func Register(mux *http.ServeMux, b *BookingHandler, wz *WizardHandler) {
	mux.HandleFunc("GET /api/v1/public/services", b.Services)
	mux.HandleFunc("GET /api/v1/public/staff", b.Staff)
	mux.HandleFunc("GET /api/v1/public/slots", b.Slots)
	mux.HandleFunc("POST /api/v1/public/book", b.Book)

	mux.HandleFunc("POST /api/v1/public/wizard", wz.Start)
	mux.HandleFunc("GET /api/v1/public/wizard/{id}", wz.Get)
	mux.HandleFunc("PATCH /api/v1/public/wizard/{id}", wz.Update)
	mux.HandleFunc("DELETE /api/v1/public/wizard/{id}", wz.Abandon)
	mux.HandleFunc("POST /api/v1/public/wizard/{id}/advance", wz.Advance)
	mux.HandleFunc("POST /api/v1/public/wizard/{id}/retreat", wz.Retreat)
	mux.HandleFunc("POST /api/v1/public/wizard/{id}/finalize", wz.Finalize)

	mux.HandleFunc("GET /api/v1/appointments", b.List)
	mux.HandleFunc("GET /api/v1/appointments/cancel-reasons", b.CancelReasons)
	mux.HandleFunc("GET /api/v1/appointments/{id}", b.Get)
	mux.HandleFunc("POST /api/v1/appointments/{id}/confirm", b.Confirm)
	mux.HandleFunc("POST /api/v1/appointments/{id}/reschedule", b.Reschedule)
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", b.Cancel)
	mux.HandleFunc("POST /api/v1/appointments/{id}/complete", b.Complete)
	mux.HandleFunc("POST /api/v1/appointments/{id}/no-show", b.NoShow)
}
