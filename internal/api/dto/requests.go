package dto

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
)

// GeoPointRequest is a GPS fix sent by a field device
type GeoPointRequest struct {
	Lat      float64  `json:"lat" binding:"gte=-90,lte=90"`
	Lng      float64  `json:"lng" binding:"gte=-180,lte=180"`
	Accuracy *float64 `json:"accuracy,omitempty" binding:"omitempty,gte=0"`
}

// ToDomain converts the request to a domain GeoPoint, nil stays nil
func (g *GeoPointRequest) ToDomain() *domain.GeoPoint {
	if g == nil {
		return nil
	}
	return &domain.GeoPoint{Lat: g.Lat, Lng: g.Lng, Accuracy: g.Accuracy}
}

// CreateBatchRequest represents the request to open a dispatch batch
type CreateBatchRequest struct {
	OriginID      string           `json:"originId" binding:"required,max=100,safe_string"`
	DestinationID string           `json:"destinationId,omitempty" binding:"max=100,safe_string"`
	TransportMode string           `json:"transportMode,omitempty" binding:"omitempty,transport_mode"`
	VehicleNumber string           `json:"vehicleNumber,omitempty" binding:"max=32,safe_string"`
	DriverName    string           `json:"driverName,omitempty" binding:"max=100,safe_string"`
	SupervisorID  string           `json:"supervisorId" binding:"required,max=100,safe_string"`
	ETA           *time.Time       `json:"eta,omitempty"`
	Location      *GeoPointRequest `json:"location,omitempty"`
	PhotoURL      string           `json:"photoUrl,omitempty" binding:"omitempty,url"`
	Notes         string           `json:"notes,omitempty" binding:"max=1000,safe_string"`
}

// UpdateBatchRequest edits the metadata of an open batch. Omitted fields are
// left unchanged. Version, when sent, must match the stored batch version.
type UpdateBatchRequest struct {
	DestinationID *string    `json:"destinationId,omitempty" binding:"omitempty,max=100,safe_string"`
	SupervisorID  *string    `json:"supervisorId,omitempty" binding:"omitempty,min=1,max=100,safe_string"`
	TransportMode *string    `json:"transportMode,omitempty" binding:"omitempty,transport_mode"`
	VehicleNumber *string    `json:"vehicleNumber,omitempty" binding:"omitempty,max=32,safe_string"`
	DriverName    *string    `json:"driverName,omitempty" binding:"omitempty,max=100,safe_string"`
	ETA           *time.Time `json:"eta,omitempty"`
	Notes         *string    `json:"notes,omitempty" binding:"omitempty,max=1000,safe_string"`
	Version       *int64     `json:"version,omitempty" binding:"omitempty,gte=0"`
}

// ToDetails converts the request to the domain edit set
func (r UpdateBatchRequest) ToDetails() domain.BatchDetails {
	details := domain.BatchDetails{
		DestinationID: r.DestinationID,
		SupervisorID:  r.SupervisorID,
		VehicleNumber: r.VehicleNumber,
		DriverName:    r.DriverName,
		ETA:           r.ETA,
		Notes:         r.Notes,
	}
	if r.TransportMode != nil {
		mode := domain.TransportMode(*r.TransportMode)
		details.TransportMode = &mode
	}
	return details
}

// AddCrateRequest identifies the crate to add by QR code or by id
type AddCrateRequest struct {
	QRCode  string `json:"qrCode,omitempty" binding:"omitempty,qr_code"`
	CrateID string `json:"crateId,omitempty" binding:"max=64,safe_string"`
}

// CancelBatchRequest carries an optional cancellation reason
type CancelBatchRequest struct {
	Reason string `json:"reason,omitempty" binding:"max=500,safe_string"`
}

// ReconcileRequest represents a crate re-weighed on arrival
type ReconcileRequest struct {
	QRCode      string  `json:"qrCode" binding:"required,qr_code"`
	Weight      float64 `json:"weight" binding:"required,gt=0"`
	PhotoURL    string  `json:"photoUrl,omitempty" binding:"omitempty,url"`
	PhotoBase64 string  `json:"photoBase64,omitempty"`
}

// RegisterCrateRequest represents a crate recorded at harvest
type RegisterCrateRequest struct {
	QRCode          string           `json:"qrCode" binding:"required,qr_code"`
	Variety         string           `json:"variety" binding:"required,max=100,safe_string"`
	Weight          float64          `json:"weight" binding:"required,gt=0"`
	QualityGrade    string           `json:"qualityGrade,omitempty" binding:"omitempty,quality_grade"`
	HarvestLocation *GeoPointRequest `json:"harvestLocation,omitempty"`
	HarvestedAt     *time.Time       `json:"harvestedAt,omitempty"`
	SupervisorID    string           `json:"supervisorId" binding:"required,max=100,safe_string"`
	PhotoURL        string           `json:"photoUrl,omitempty" binding:"omitempty,url"`
	PhotoBase64     string           `json:"photoBase64,omitempty"`
	Notes           string           `json:"notes,omitempty" binding:"max=1000,safe_string"`
}

// ValidateCodeRequest asks whether a scanned code is well formed
type ValidateCodeRequest struct {
	Code string `json:"code" binding:"required,max=128"`
}

// MaxPhotoBytes bounds a decoded inline photo
const MaxPhotoBytes = 5 << 20

// DecodePhoto decodes an inline photo given as plain base64 or as a data URL
// ("data:image/jpeg;base64,..."). It returns the bytes and the declared content
// type, which is empty for plain base64.
func DecodePhoto(encoded string) ([]byte, string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, "", nil
	}

	var contentType string
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", domain.NewValidationError("photoBase64", "data URL must be base64 encoded")
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", domain.NewValidationError("photoBase64", "photo is not valid base64")
	}
	if len(data) > MaxPhotoBytes {
		return nil, "", domain.NewValidationError("photoBase64", "photo exceeds 5 MiB")
	}
	return data, contentType, nil
}
