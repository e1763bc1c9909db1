package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/entity"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/repository"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/service"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/testutil"
)

func TestCreateMachineDefaults(t *testing.T) {
	env := testutil.NewEnv(t)
	machine, err := env.Services.Machine.Create(context.Background(), testutil.TestActor(), &service.CreateMachineRequest{
		Name: " DMG Mori ",
		Type: "5-Axis",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if machine.Name != "DMG Mori" {
		t.Errorf("Expected trimmed name, got %q", machine.Name)
	}
	if machine.Status != entity.MachineStatusOffline {
		t.Errorf("Expected Offline, got %q", machine.Status)
	}
	if machine.NextProgramNumber != entity.DefaultProgramNumber {
		t.Errorf("Expected counter %d, got %d", entity.DefaultProgramNumber, machine.NextProgramNumber)
	}
}

func TestNextProgramNumberDoesNotConsume(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	machine := testutil.SeedMachine(t, env.DB, "Haas", 7)

	for i := 0; i < 2; i++ {
		next, err := env.Services.Machine.NextProgramNumber(ctx, machine.ID)
		if err != nil {
			t.Fatalf("NextProgramNumber failed: %v", err)
		}
		if next.Next != 7 || next.Formatted != "0007" {
			t.Errorf("Expected 7/0007, got %d/%s", next.Next, next.Formatted)
		}
	}

	if _, err := env.Services.Machine.NextProgramNumber(ctx, "00000000-0000-4000-8000-999999999999"); !service.IsKind(err, service.KindNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestDeleteMachineGuardedByPrograms(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)
	program := testutil.SeedProgram(t, env.DB, machine.ID, "0100")

	err := env.Services.Machine.Delete(ctx, testutil.TestActor(), machine.ID)
	if !service.IsKind(err, service.KindConflict) {
		t.Fatalf("Expected conflict, got %v", err)
	}
	if _, err := env.Services.Machine.Get(ctx, machine.ID); err != nil {
		t.Fatalf("Machine should still exist: %v", err)
	}

	if err := env.Services.Program.Delete(ctx, testutil.TestActor(), program.ID); err != nil {
		t.Fatalf("Program delete failed: %v", err)
	}
	if err := env.Services.Machine.Delete(ctx, testutil.TestActor(), machine.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := env.Services.Machine.Get(ctx, machine.ID); !service.IsKind(err, service.KindNotFound) {
		t.Errorf("Expected not found after delete, got %v", err)
	}
	if err := env.Services.Machine.Delete(ctx, testutil.TestActor(), machine.ID); !service.IsKind(err, service.KindNotFound) {
		t.Errorf("Expected not found on second delete, got %v", err)
	}
}

func TestDeleteMachineRacingProgramCreateLeavesNoOrphans(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		machine := testutil.SeedMachine(t, env.DB, fmt.Sprintf("Haas %d", round), 100)

		var wg sync.WaitGroup
		var deleteErr, createErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			deleteErr = env.Services.Machine.Delete(ctx, testutil.TestActor(), machine.ID)
		}()
		go func() {
			defer wg.Done()
			_, createErr = env.Services.Program.Create(ctx, testutil.TestActor(), newProgramRequest(machine.ID, "P-1"))
		}()
		wg.Wait()

		switch {
		case deleteErr == nil && createErr == nil:
			t.Fatalf("Round %d: machine deleted and program created, program is orphaned", round)
		case deleteErr == nil:
			if !service.IsKind(createErr, service.KindNotFound) {
				t.Errorf("Round %d: expected machine not found on create, got %v", round, createErr)
			}
		case createErr == nil:
			if !service.IsKind(deleteErr, service.KindConflict) {
				t.Errorf("Round %d: expected conflict on delete, got %v", round, deleteErr)
			}
		default:
			t.Fatalf("Round %d: both failed: delete %v, create %v", round, deleteErr, createErr)
		}

		var orphans int64
		env.DB.Model(&entity.NCProgram{}).
			Where("machine_id NOT IN (?)", env.DB.Model(&entity.Machine{}).Select("id")).
			Count(&orphans)
		if orphans != 0 {
			t.Fatalf("Round %d: expected no orphaned programs, got %d", round, orphans)
		}
	}
}

func TestListMachinesFilters(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	haas := testutil.SeedMachine(t, env.DB, "Haas VF-2", 100)
	testutil.SeedMachine(t, env.DB, "Mazak", 100)
	testutil.SeedProgram(t, env.DB, haas.ID, "0100")
	testutil.SeedProgram(t, env.DB, haas.ID, "0101")

	if _, err := env.Services.Machine.UpdateStatus(ctx, testutil.TestActor(), haas.ID, entity.MachineStatusMaintenance); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	machines, err := env.Services.Machine.List(ctx, repository.MachineFilter{Status: entity.MachineStatusMaintenance})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(machines) != 1 || machines[0].ID != haas.ID {
		t.Fatalf("Expected only Haas, got %+v", machines)
	}
	if machines[0].ProgramCount != 2 {
		t.Errorf("Expected program count 2, got %d", machines[0].ProgramCount)
	}

	machines, _ = env.Services.Machine.List(ctx, repository.MachineFilter{Search: "maz"})
	if len(machines) != 1 || machines[0].Name != "Mazak" {
		t.Errorf("Expected Mazak by search, got %+v", machines)
	}

	if _, err := env.Services.Machine.List(ctx, repository.MachineFilter{Status: "Broken"}); !service.IsKind(err, service.KindValidation) {
		t.Errorf("Expected validation error for status, got %v", err)
	}
}

func TestUpdateMachineStatusRejectsUnknown(t *testing.T) {
	env := testutil.NewEnv(t)
	machine := testutil.SeedMachine(t, env.DB, "Haas", 100)

	_, err := env.Services.Machine.UpdateStatus(context.Background(), testutil.TestActor(), machine.ID, "Running")
	if !service.IsKind(err, service.KindValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}
