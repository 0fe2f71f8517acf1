package model

import "time"

// Book represents a catalog title (not a physical copy) as stored in the
// `books` table.  TotalQuantity is the number of copies the library owns;
// AvailableQuantity is the number currently on the shelf.  Both are mutated
// only by conditional updates so that 0 <= available <= total holds at all
// times, even under concurrent confirmations.
//
// Fields:
//  ID                – primary key identifier.
//  Title             – book title.
//  Author            – author display name.
//  TotalQuantity     – copies owned.
//  AvailableQuantity – copies on the shelf right now.
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last update.
type Book struct {
    ID                uint64    // books.id
    Title             string    // books.title
    Author            string    // books.author
    TotalQuantity     int       // books.total_quantity
    AvailableQuantity int       // books.available_quantity
    CreatedAt         time.Time // books.created_at
    UpdatedAt         time.Time // books.updated_at
}
