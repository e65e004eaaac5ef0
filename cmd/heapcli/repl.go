package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"heapstore/buffer"
	"heapstore/catalog"
	"heapstore/config"
	"heapstore/heap"
)

// REPL is a minimal line-oriented front end over the heap file API: one
// operation per line, no query language, no WHERE-clause parsing beyond a
// single-attribute integer filter for SCAN.
type REPL struct {
	cfg *config.Config
	bm  *buffer.Manager
	cat *catalog.Catalog
	log zerolog.Logger
}

func NewREPL(cfg *config.Config, logger zerolog.Logger) (*REPL, error) {
	bm := buffer.NewManager(cfg, logger)
	cat, err := catalog.New(cfg, bm, logger)
	if err != nil {
		return nil, err
	}
	return &REPL{cfg: cfg, bm: bm, cat: cat, log: logger}, nil
}

// Run reads commands from stdin until EXIT or EOF.
func (r *REPL) Run() error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "EXIT") {
			return nil
		}
		if err := r.ProcessCommand(line, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// ProcessCommand parses and executes a single command, writing output to w.
func (r *REPL) ProcessCommand(text string, w io.Writer) error {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	cmd := strings.ToUpper(fields[0])
	switch cmd {
	case "CREATE":
		return r.cmdCreate(fields, w)
	case "DESTROY":
		return r.cmdDestroy(fields, w)
	case "LIST":
		return r.cmdList(fields, w)
	case "INSERT":
		return r.cmdInsert(fields, w)
	case "GET":
		return r.cmdGet(fields, w)
	case "SCAN":
		return r.cmdScan(fields, w)
	case "DELETE":
		return r.cmdDelete(fields, w)
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func (r *REPL) cmdCreate(fields []string, w io.Writer) error {
	if len(fields) != 2 {
		return fmt.Errorf("usage: CREATE <name>")
	}
	if err := r.cat.Create(fields[1]); err != nil {
		return err
	}
	fmt.Fprintf(w, "created %s\n", fields[1])
	return nil
}

func (r *REPL) cmdDestroy(fields []string, w io.Writer) error {
	if len(fields) != 2 {
		return fmt.Errorf("usage: DESTROY <name>")
	}
	if err := r.cat.Destroy(fields[1]); err != nil {
		return err
	}
	fmt.Fprintf(w, "destroyed %s\n", fields[1])
	return nil
}

func (r *REPL) cmdList(fields []string, w io.Writer) error {
	for _, name := range r.cat.List() {
		fmt.Fprintln(w, name)
	}
	return nil
}

func (r *REPL) cmdInsert(fields []string, w io.Writer) error {
	if len(fields) < 3 {
		return fmt.Errorf("usage: INSERT <name> <value...>")
	}
	ifs, err := r.cat.OpenInsert(fields[1])
	if err != nil {
		return err
	}
	defer ifs.Close()
	value := strings.Join(fields[2:], " ")
	rid, err := ifs.InsertRecord([]byte(value))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "inserted (%d,%d)\n", rid.PageNo, rid.SlotNo)
	return nil
}

func (r *REPL) cmdGet(fields []string, w io.Writer) error {
	if len(fields) != 4 {
		return fmt.Errorf("usage: GET <name> <pageNo> <slotNo>")
	}
	rid, err := parseRID(fields[2], fields[3])
	if err != nil {
		return err
	}
	hf, err := r.cat.Open(fields[1])
	if err != nil {
		return err
	}
	defer hf.Close()
	rec, err := hf.GetRecord(rid)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", rec)
	return nil
}

// cmdScan supports an optional trailing "WHERE <offset> <op> <int>" clause
// (op one of LT, LTE, EQ, GTE, GT, NE) over a 4-byte integer column — deliberately not a general predicate
// language, just enough to exercise StartScan from the command line.
func (r *REPL) cmdScan(fields []string, w io.Writer) error {
	if len(fields) < 2 {
		return fmt.Errorf("usage: SCAN <name> [WHERE <offset> <op> <int>]")
	}
	scan, err := r.cat.OpenScan(fields[1])
	if err != nil {
		return err
	}
	defer scan.Close()

	if len(fields) == 2 {
		if err := scan.StartScan(0, 0, 0, nil, 0); err != nil {
			return err
		}
	} else if len(fields) == 6 && strings.EqualFold(fields[2], "WHERE") {
		offset, err := strconv.Atoi(fields[3])
		if err != nil {
			return fmt.Errorf("bad offset: %w", err)
		}
		op, err := parseOp(fields[4])
		if err != nil {
			return err
		}
		val, err := strconv.Atoi(fields[5])
		if err != nil {
			return fmt.Errorf("bad value: %w", err)
		}
		valBytes := make([]byte, 4)
		valBytes[0] = byte(val)
		valBytes[1] = byte(val >> 8)
		valBytes[2] = byte(val >> 16)
		valBytes[3] = byte(val >> 24)
		if err := scan.StartScan(offset, 4, heap.AttrInteger, valBytes, op); err != nil {
			return err
		}
	} else {
		return fmt.Errorf("usage: SCAN <name> [WHERE <offset> <op> <int>]")
	}

	for {
		rid, err := scan.ScanNext()
		if err == heap.ErrFileEOF {
			return nil
		}
		if err != nil {
			return err
		}
		rec, err := scan.GetRecord()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "(%d,%d) %s\n", rid.PageNo, rid.SlotNo, rec)
	}
}

func (r *REPL) cmdDelete(fields []string, w io.Writer) error {
	if len(fields) != 4 {
		return fmt.Errorf("usage: DELETE <name> <pageNo> <slotNo>")
	}
	target, err := parseRID(fields[2], fields[3])
	if err != nil {
		return err
	}
	scan, err := r.cat.OpenScan(fields[1])
	if err != nil {
		return err
	}
	defer scan.Close()
	if err := scan.StartScan(0, 0, 0, nil, 0); err != nil {
		return err
	}
	for {
		rid, err := scan.ScanNext()
		if err == heap.ErrFileEOF {
			return fmt.Errorf("record (%d,%d) not found", target.PageNo, target.SlotNo)
		}
		if err != nil {
			return err
		}
		if rid == target {
			if err := scan.DeleteRecord(); err != nil {
				return err
			}
			fmt.Fprintf(w, "deleted (%d,%d)\n", rid.PageNo, rid.SlotNo)
			return nil
		}
	}
}

func parseRID(pageField, slotField string) (heap.RID, error) {
	pageNo, err := strconv.Atoi(pageField)
	if err != nil {
		return heap.NULLRID, fmt.Errorf("bad page number: %w", err)
	}
	slotNo, err := strconv.Atoi(slotField)
	if err != nil {
		return heap.NULLRID, fmt.Errorf("bad slot number: %w", err)
	}
	return heap.RID{PageNo: int32(pageNo), SlotNo: int32(slotNo)}, nil
}

func parseOp(s string) (heap.CompOp, error) {
	switch strings.ToUpper(s) {
	case "LT":
		return heap.OpLT, nil
	case "LTE":
		return heap.OpLTE, nil
	case "EQ":
		return heap.OpEQ, nil
	case "GTE":
		return heap.OpGTE, nil
	case "GT":
		return heap.OpGT, nil
	case "NE":
		return heap.OpNE, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", s)
	}
}
