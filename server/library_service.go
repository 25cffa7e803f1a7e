package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/HanzPo/brainfuck/library"
)

// LibraryService exposes the program library over Connect.
type LibraryService struct {
	lib *library.Library
}

// NewLibraryService creates a LibraryService.
func NewLibraryService(lib *library.Library) *LibraryService {
	return &LibraryService{lib: lib}
}

// SaveProgram stores (or replaces) a named program.
func (s *LibraryService) SaveProgram(
	ctx context.Context,
	req *connect.Request[SaveProgramRequest],
) (*connect.Response[SaveProgramResponse], error) {
	if req.Msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name is required"))
	}

	if err := s.lib.Save(req.Msg.Name, req.Msg.Source); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&SaveProgramResponse{}), nil
}

// GetProgram retrieves a stored program by name.
func (s *LibraryService) GetProgram(
	ctx context.Context,
	req *connect.Request[GetProgramRequest],
) (*connect.Response[GetProgramResponse], error) {
	program, err := s.lib.Get(req.Msg.Name)
	if errors.Is(err, library.ErrProgramNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&GetProgramResponse{
		Name:   program.Name,
		Source: program.Source,
	}), nil
}

// ListPrograms returns all stored programs.
func (s *LibraryService) ListPrograms(
	ctx context.Context,
	req *connect.Request[ListProgramsRequest],
) (*connect.Response[ListProgramsResponse], error) {
	programs, err := s.lib.List()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp := &ListProgramsResponse{}
	for _, p := range programs {
		resp.Programs = append(resp.Programs, ProgramInfo{
			Name:      p.Name,
			CreatedAt: p.CreatedAt,
		})
	}
	return connect.NewResponse(resp), nil
}

// DeleteProgram removes a stored program.
func (s *LibraryService) DeleteProgram(
	ctx context.Context,
	req *connect.Request[DeleteProgramRequest],
) (*connect.Response[DeleteProgramResponse], error) {
	err := s.lib.Delete(req.Msg.Name)
	if errors.Is(err, library.ErrProgramNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&DeleteProgramResponse{}), nil
}

// ListRuns returns the run history of a stored program.
func (s *LibraryService) ListRuns(
	ctx context.Context,
	req *connect.Request[ListRunsRequest],
) (*connect.Response[ListRunsResponse], error) {
	runs, err := s.lib.Runs(req.Msg.Program)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp := &ListRunsResponse{}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, RunRecord{
			Program:    r.Program,
			Output:     r.Output,
			DurationMS: r.Duration.Milliseconds(),
			CreatedAt:  r.CreatedAt,
		})
	}
	return connect.NewResponse(resp), nil
}
