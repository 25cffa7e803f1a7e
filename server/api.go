package server

import "time"

// Connect procedure paths for the session service.
const (
	ProcCreateSession  = "/brainfuck.v1.SessionService/CreateSession"
	ProcDestroySession = "/brainfuck.v1.SessionService/DestroySession"
	ProcGetState       = "/brainfuck.v1.SessionService/GetState"
	ProcStep           = "/brainfuck.v1.SessionService/Step"
	ProcRun            = "/brainfuck.v1.SessionService/Run"
	ProcPause          = "/brainfuck.v1.SessionService/Pause"
	ProcResume         = "/brainfuck.v1.SessionService/Resume"
	ProcReset          = "/brainfuck.v1.SessionService/Reset"
	ProcProvideInput   = "/brainfuck.v1.SessionService/ProvideInput"
	ProcSaveImage      = "/brainfuck.v1.SessionService/SaveImage"
	ProcRestoreImage   = "/brainfuck.v1.SessionService/RestoreImage"
)

// Connect procedure paths for the library service.
const (
	ProcSaveProgram   = "/brainfuck.v1.LibraryService/SaveProgram"
	ProcGetProgram    = "/brainfuck.v1.LibraryService/GetProgram"
	ProcListPrograms  = "/brainfuck.v1.LibraryService/ListPrograms"
	ProcDeleteProgram = "/brainfuck.v1.LibraryService/DeleteProgram"
	ProcListRuns      = "/brainfuck.v1.LibraryService/ListRuns"
)

// --- Session service messages ---

type CreateSessionRequest struct {
	Name       string `json:"name,omitempty"`
	Program    string `json:"program"`
	MemorySize int    `json:"memory_size,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

type DestroySessionRequest struct {
	SessionID string `json:"session_id"`
}

type DestroySessionResponse struct{}

type GetStateRequest struct {
	SessionID string `json:"session_id"`
}

type GetStateResponse struct {
	Program        string `json:"program"`
	Memory         []byte `json:"memory"`
	Pointer        int    `json:"pointer"`
	ProgramCounter int    `json:"program_counter"`
	Output         string `json:"output"`
	Input          string `json:"input"`
	InputIndex     int    `json:"input_index"`
	IsRunning      bool   `json:"is_running"`
	IsPaused       bool   `json:"is_paused"`
	LastError      string `json:"last_error,omitempty"`
}

type StepRequest struct {
	SessionID string `json:"session_id"`
}

type StepResponse struct {
	Stepped bool `json:"stepped"`
}

type RunRequest struct {
	SessionID string `json:"session_id"`
}

type RunResponse struct {
	Started bool `json:"started"`
}

type PauseRequest struct {
	SessionID string `json:"session_id"`
}

type PauseResponse struct{}

type ResumeRequest struct {
	SessionID string `json:"session_id"`
}

type ResumeResponse struct {
	Started bool `json:"started"`
}

type ResetRequest struct {
	SessionID string `json:"session_id"`
}

type ResetResponse struct{}

type ProvideInputRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type ProvideInputResponse struct{}

type SaveImageRequest struct {
	SessionID string `json:"session_id"`
}

type SaveImageResponse struct {
	Image []byte `json:"image"`
}

type RestoreImageRequest struct {
	Name  string `json:"name,omitempty"`
	Image []byte `json:"image"`
}

type RestoreImageResponse struct {
	SessionID string `json:"session_id"`
}

// --- Library service messages ---

type SaveProgramRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type SaveProgramResponse struct{}

type GetProgramRequest struct {
	Name string `json:"name"`
}

type GetProgramResponse struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type ListProgramsRequest struct{}

type ProgramInfo struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ListProgramsResponse struct {
	Programs []ProgramInfo `json:"programs"`
}

type DeleteProgramRequest struct {
	Name string `json:"name"`
}

type DeleteProgramResponse struct{}

type ListRunsRequest struct {
	Program string `json:"program"`
}

type RunRecord struct {
	Program    string    `json:"program"`
	Output     string    `json:"output"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

type ListRunsResponse struct {
	Runs []RunRecord `json:"runs"`
}
