package main

import (
	"fmt"
	"math/rand"

	"github.com/sincaw/chred/pkg/archive"
	"github.com/sincaw/chred/pkg/scan"
)

func main() {
	msg, err := scan.EncodeMessage("CHR", "HELLO", []byte("sprite and palette!!"))
	if err != nil {
		panic(err)
	}
	chunks, err := scan.Split(msg, 24)
	if err != nil {
		panic(err)
	}
	rand.Shuffle(len(chunks), func(i, j int) { chunks[i], chunks[j] = chunks[j], chunks[i] })

	db, err := archive.New("", archive.InMemory())
	if err != nil {
		panic(err)
	}
	defer db.Close()
	a, err := archive.Open(db, archive.DefaultNamespace)
	if err != nil {
		panic(err)
	}

	s := scan.NewSession()
	for s.Active() {
		for _, c := range chunks {
			out, err := s.ProcessChunk(c)
			if err != nil {
				fmt.Println("rejected:", err)
				continue
			}
			fmt.Printf("accepted %d/%d\n", s.ReceivedCount(), s.TotalCount())
			if out.Status == scan.StatusCompleted {
				if err = a.Accept(out.Entity); err != nil {
					panic(err)
				}
				break
			}
		}
	}

	recs, total, err := a.List(0, 0)
	if err != nil {
		panic(err)
	}
	fmt.Println("archived", total)
	for _, r := range recs {
		fmt.Println(r.ID, r.Size, r.Digest)
	}
}
